package configuration

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Validate checks constraints the struct tags can't express.  Every section is checked and all problems are
// returned together.
func (c LoaderConfiguration) Validate() error {
	var result *multierror.Error
	if !c.InMemory && len(c.Postgres.Connection) == 0 {
		result = multierror.Append(result, errors.New("postgres.connection must be set unless inMemory is enabled"))
	}
	if c.Workers < 1 {
		result = multierror.Append(result, errors.New("workers must be positive"))
	}
	if c.WindowTimeout < 0 {
		result = multierror.Append(result, errors.New("windowTimeout must be non-negative"))
	}
	if c.ReferenceTimeout < 0 {
		result = multierror.Append(result, errors.New("referenceTimeout must be non-negative"))
	}
	if c.ConfirmAboveRows < 0 {
		result = multierror.Append(result, errors.New("confirmAboveRows must be non-negative"))
	}
	if err := c.Reference.Validate(); err != nil {
		result = multierror.Append(result, errors.WithMessage(err, "reference"))
	}
	if err := c.News.Validate(); err != nil {
		result = multierror.Append(result, errors.WithMessage(err, "news"))
	}
	if err := c.Tags.Validate(); err != nil {
		result = multierror.Append(result, errors.WithMessage(err, "tags"))
	}
	if err := c.Retry.Validate(); err != nil {
		result = multierror.Append(result, errors.WithMessage(err, "retry"))
	}
	if c.Metrics.Enabled && c.Metrics.Port == 0 {
		result = multierror.Append(result, errors.New("metrics.port must be set when metrics are enabled"))
	}
	if err := c.Logging.Validate(); err != nil {
		result = multierror.Append(result, errors.WithMessage(err, "logging"))
	}
	return result.ErrorOrNil()
}

func (c ReferenceConfig) Validate() error {
	if c.Sources < 1 {
		return errors.New("sources must be positive")
	}
	if c.Authors < 1 {
		return errors.New("authors must be positive")
	}
	if c.Tags < 1 {
		return errors.New("tags must be positive")
	}
	if len(c.Categories) == 0 {
		return errors.New("categories must not be empty")
	}
	seen := make(map[string]bool, len(c.Categories))
	for _, category := range c.Categories {
		if category == "" {
			return errors.New("categories must not contain empty names")
		}
		if seen[category] {
			return errors.Errorf("category %q is listed more than once", category)
		}
		seen[category] = true
	}
	return nil
}

func (c NewsConfig) Validate() error {
	if c.Total < 0 {
		return errors.New("total must be non-negative")
	}
	if c.BatchSize < 1 {
		return errors.New("batchSize must be positive")
	}
	if c.TitleWords < 1 {
		return errors.New("titleWords must be positive")
	}
	if c.ContentMaxChars < 1 {
		return errors.New("contentMaxChars must be positive")
	}
	if c.PublishedWindow <= 0 {
		return errors.New("publishedWindow must be positive")
	}
	return nil
}

func (c TagsConfig) Validate() error {
	if c.MinPerNews < 0 {
		return errors.New("minPerNews must be non-negative")
	}
	if c.MaxPerNews < c.MinPerNews {
		return errors.Errorf("maxPerNews (%d) must not be less than minPerNews (%d)", c.MaxPerNews, c.MinPerNews)
	}
	return nil
}

func (c RetryConfig) Validate() error {
	if c.Attempts < 1 {
		return errors.New("attempts must be at least 1")
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < 0 || c.MaxJitter < 0 {
		return errors.New("backoff durations must be non-negative")
	}
	if c.MaxBackoff > 0 && c.MaxBackoff < c.InitialBackoff {
		return errors.New("maxBackoff must not be less than initialBackoff")
	}
	return nil
}
