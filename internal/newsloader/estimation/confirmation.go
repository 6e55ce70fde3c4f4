package estimation

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ShouldPrompt returns true when the load is larger than threshold rows.  A zero threshold never prompts.
func ShouldPrompt(est Estimation, threshold int64) bool {
	return threshold > 0 && est.TotalRows > threshold
}

// Display writes est to out with grouped thousands.
func Display(out io.Writer, est Estimation) {
	p := message.NewPrinter(language.English)
	p.Fprintln(out, "=================================================================")
	p.Fprintln(out, "News Load Estimation")
	p.Fprintln(out, "=================================================================")
	p.Fprintf(out, "Reference rows:        %d\n", est.ReferenceRows)
	p.Fprintf(out, "News rows:             %d\n", est.NewsRows)
	p.Fprintf(out, "Windows:               %d\n", est.Windows)
	p.Fprintf(out, "Tag links:             %d to %d (about %d)\n", est.MinTagLinks, est.MaxTagLinks, est.ExpectedTagLinks)
	p.Fprintf(out, "Total rows:            %d\n", est.TotalRows)
	p.Fprintf(out, "Estimated DB size:     %s\n", FormatBytes(est.EstimatedDatabaseSizeBytes))
	p.Fprintln(out, "=================================================================")
}

func DisplayEstimationAndConfirm(in io.Reader, out io.Writer, est Estimation) (bool, error) {
	Display(out, est)
	p := message.NewPrinter(language.English)
	p.Fprintln(out)
	p.Fprint(out, "This load will generate significant data. Proceed? (y/N): ")

	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && response != "") {
		return false, errors.Wrap(err, "reading user input")
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}
