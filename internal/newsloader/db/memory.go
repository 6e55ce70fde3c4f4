package db

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/newsbench/newsloader/internal/common/loaderrors"
)

const idIndex = "id"

var errTxClosed = errors.New("transaction already committed or rolled back")

// StoredNews is a news row together with its id.
type StoredNews struct {
	ID int64
	NewsRow
}

type referenceRecord struct {
	ID   int64
	Name string
}

func memorySchema() *memdb.DBSchema {
	byID := func(table Table, indexer memdb.Indexer) *memdb.TableSchema {
		return &memdb.TableSchema{
			Name: string(table),
			Indexes: map[string]*memdb.IndexSchema{
				idIndex: {Name: idIndex, Unique: true, Indexer: indexer},
			},
		}
	}
	tables := make(map[string]*memdb.TableSchema, len(AllTables))
	for _, table := range ReferenceTables {
		tables[string(table)] = byID(table, &memdb.IntFieldIndex{Field: "ID"})
	}
	tables[string(News)] = byID(News, &memdb.IntFieldIndex{Field: "ID"})
	// the primary key of news_tags is the pair
	tables[string(NewsTags)] = byID(NewsTags, &memdb.CompoundIndex{
		Indexes: []memdb.Indexer{
			&memdb.IntFieldIndex{Field: "NewsID"},
			&memdb.IntFieldIndex{Field: "TagID"},
		},
	})
	return &memdb.DBSchema{Tables: tables}
}

// MemoryDatabase is a process local Database on top of go-memdb, which holds committed rows.  Transactions
// stage their rows and apply them in a single memdb write transaction on commit, so they don't block each
// other and every read sees the latest committed state (read committed).  Foreign keys and the news_tags
// primary key are enforced, and like postgres ids consumed by a rolled back transaction are not handed out again.
type MemoryDatabase struct {
	mu        sync.Mutex
	store     *memdb.MemDB
	sequences map[Table]int64
}

func NewMemoryDatabase() *MemoryDatabase {
	m := &MemoryDatabase{}
	m.clear()
	return m
}

// clear must be called with mu held.
func (m *MemoryDatabase) clear() {
	store, err := memdb.NewMemDB(memorySchema())
	if err != nil {
		// only fails on an invalid schema
		panic(err)
	}
	m.store = store
	m.sequences = map[Table]int64{}
}

// snapshot returns a read transaction over the rows committed so far.
func (m *MemoryDatabase) snapshot() *memdb.Txn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Txn(false)
}

func (m *MemoryDatabase) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return &memoryTx{
		db:       m,
		names:    map[Table]map[int64]string{},
		news:     map[int64]NewsRow{},
		newsTags: map[NewsTag]bool{},
	}, nil
}

func (m *MemoryDatabase) Count(ctx context.Context, table Table) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.WithStack(err)
	}
	return int64(m.RowCount(table)), nil
}

func (m *MemoryDatabase) NewsExists(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.WithStack(err)
	}
	return exists(m.snapshot(), News, id), nil
}

func (m *MemoryDatabase) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
	return nil
}

func (m *MemoryDatabase) Close() {}

// RowCount returns the number of committed rows in table.
func (m *MemoryDatabase) RowCount(table Table) int {
	n := 0
	each(m.snapshot(), table, func(any) { n++ })
	return n
}

// Names returns the committed names of a reference table ordered by id.
func (m *MemoryDatabase) Names(table Table) []string {
	var records []*referenceRecord
	each(m.snapshot(), table, func(obj any) { records = append(records, obj.(*referenceRecord)) })
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	names := make([]string, len(records))
	for i, record := range records {
		names[i] = record.Name
	}
	return names
}

// CommittedNews returns the committed news rows ordered by id.
func (m *MemoryDatabase) CommittedNews() []StoredNews {
	var rows []StoredNews
	each(m.snapshot(), News, func(obj any) { rows = append(rows, *obj.(*StoredNews)) })
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

// CommittedNewsTags returns the committed links ordered by news id then tag id.
func (m *MemoryDatabase) CommittedNewsTags() []NewsTag {
	var links []NewsTag
	each(m.snapshot(), NewsTags, func(obj any) { links = append(links, *obj.(*NewsTag)) })
	sort.Slice(links, func(i, j int) bool {
		if links[i].NewsID != links[j].NewsID {
			return links[i].NewsID < links[j].NewsID
		}
		return links[i].TagID < links[j].TagID
	})
	return links
}

func (m *MemoryDatabase) nextIDs(table Table, count int) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, count)
	for i := range ids {
		m.sequences[table]++
		ids[i] = m.sequences[table]
	}
	return ids
}

func each(txn *memdb.Txn, table Table, f func(obj any)) {
	iter, err := txn.Get(string(table), idIndex)
	if err != nil {
		return
	}
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		f(obj)
	}
}

func exists(txn *memdb.Txn, table Table, args ...any) bool {
	obj, err := txn.First(string(table), idIndex, args...)
	return err == nil && obj != nil
}

type memoryTx struct {
	db       *MemoryDatabase
	names    map[Table]map[int64]string
	news     map[int64]NewsRow
	newsTags map[NewsTag]bool
	closed   bool
}

func (t *memoryTx) check(ctx context.Context) error {
	if t.closed {
		return errors.WithStack(errTxClosed)
	}
	return errors.WithStack(ctx.Err())
}

func (t *memoryTx) InsertReference(ctx context.Context, table Table, names []string) (int64, error) {
	if err := t.check(ctx); err != nil {
		return 0, err
	}
	if !table.IsReference() {
		return 0, errors.WithStack(&loaderrors.ErrInvalidArgument{Name: "table", Value: table, Message: "not a reference table"})
	}
	for _, name := range names {
		if name == "" {
			return 0, errors.WithStack(&loaderrors.ErrConstraintViolation{
				Table: string(table), Constraint: "name_not_null", Message: "empty name",
			})
		}
	}

	ids := t.db.nextIDs(table, len(names))
	if t.names[table] == nil {
		t.names[table] = map[int64]string{}
	}
	for i, id := range ids {
		t.names[table][id] = names[i]
	}
	return int64(len(names)), nil
}

func (t *memoryTx) InsertNews(ctx context.Context, rows []NewsRow) ([]int64, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	committed := t.db.snapshot()
	for _, row := range rows {
		for _, fk := range []struct {
			table Table
			id    int64
		}{{Authors, row.AuthorID}, {Sources, row.SourceID}, {Categories, row.CategoryID}} {
			if !t.referenceVisible(committed, fk.table, fk.id) {
				return nil, errors.WithStack(&loaderrors.ErrReferentialIntegrity{
					Table:   string(News),
					Message: "key " + string(fk.table) + "(" + itoa(fk.id) + ") is not present",
				})
			}
		}
	}
	ids := t.db.nextIDs(News, len(rows))
	for i, id := range ids {
		t.news[id] = rows[i]
	}
	return ids, nil
}

func (t *memoryTx) InsertNewsTags(ctx context.Context, links []NewsTag) (int64, error) {
	if err := t.check(ctx); err != nil {
		return 0, err
	}
	committed := t.db.snapshot()
	for _, link := range links {
		if _, staged := t.news[link.NewsID]; !staged && !exists(committed, News, link.NewsID) {
			return 0, errors.WithStack(&loaderrors.ErrReferentialIntegrity{
				Table:   string(NewsTags),
				Message: "key news(" + itoa(link.NewsID) + ") is not present",
			})
		}
		if !t.referenceVisible(committed, Tags, link.TagID) {
			return 0, errors.WithStack(&loaderrors.ErrReferentialIntegrity{
				Table:   string(NewsTags),
				Message: "key tags(" + itoa(link.TagID) + ") is not present",
			})
		}
	}
	var persisted int64
	for _, link := range links {
		if t.newsTags[link] || exists(committed, NewsTags, link.NewsID, link.TagID) {
			continue
		}
		t.newsTags[link] = true
		persisted++
	}
	return persisted, nil
}

func (t *memoryTx) SelectIDs(ctx context.Context, table Table) ([]int64, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	var ids []int64
	committed := t.db.snapshot()
	switch table {
	case News:
		each(committed, News, func(obj any) { ids = append(ids, obj.(*StoredNews).ID) })
		for id := range t.news {
			ids = append(ids, id)
		}
	case NewsTags:
		return nil, errors.WithStack(&loaderrors.ErrInvalidArgument{Name: "table", Value: table, Message: "table has no id column"})
	default:
		each(committed, table, func(obj any) { ids = append(ids, obj.(*referenceRecord).ID) })
		for id := range t.names[table] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Commit applies the staged rows in one memdb write transaction.
func (t *memoryTx) Commit(ctx context.Context) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	txn := t.db.store.Txn(true)
	defer txn.Abort()

	for table, names := range t.names {
		for id, name := range names {
			if err := txn.Insert(string(table), &referenceRecord{ID: id, Name: name}); err != nil {
				return errors.WithStack(err)
			}
		}
	}
	for id, row := range t.news {
		if err := txn.Insert(string(News), &StoredNews{ID: id, NewsRow: row}); err != nil {
			return errors.WithStack(err)
		}
	}
	for link := range t.newsTags {
		// committed concurrently by another transaction
		if exists(txn, NewsTags, link.NewsID, link.TagID) {
			continue
		}
		link := link
		if err := txn.Insert(string(NewsTags), &link); err != nil {
			return errors.WithStack(err)
		}
	}
	txn.Commit()
	t.closed = true
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	t.closed = true
	t.names = nil
	t.news = nil
	t.newsTags = nil
	return nil
}

func (t *memoryTx) referenceVisible(committed *memdb.Txn, table Table, id int64) bool {
	if _, ok := t.names[table][id]; ok {
		return true
	}
	return exists(committed, table, id)
}

func itoa(i int64) string {
	return strconv.FormatInt(i, 10)
}
