package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"lureingest/internal/domain"
	"lureingest/internal/extract"
)

var enqueueFlags struct {
	source string
	url    string
	name   string
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a product page for the next run",
	RunE:  runEnqueue,
}

func init() {
	f := enqueueCmd.Flags()
	f.StringVar(&enqueueFlags.source, "source", "", "Source id from the sources file (required)")
	f.StringVar(&enqueueFlags.url, "url", "", "Absolute product page URL (required)")
	f.StringVar(&enqueueFlags.name, "name", "", "Optional label shown in summaries")

	_ = enqueueCmd.MarkFlagRequired("source")
	_ = enqueueCmd.MarkFlagRequired("url")
}

func runEnqueue(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	item, err := newWorkItem(enqueueFlags.source, enqueueFlags.url, enqueueFlags.name)
	if err != nil {
		return err
	}
	if err := checkSourceKnown(e.cfg.SourcesFile, item.Source); err != nil {
		return err
	}

	st, err := openStores(cmd.Context(), e)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.close()

	id, err := st.admin.Enqueue(cmd.Context(), item)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Queued %s (%s)\n", id, item.URL)
	return nil
}

func newWorkItem(source, rawURL, name string) (domain.WorkItem, error) {
	source, rawURL = strings.TrimSpace(source), strings.TrimSpace(rawURL)
	if source == "" || rawURL == "" {
		return domain.WorkItem{}, errors.New("enqueue: source and url are required")
	}
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return domain.WorkItem{}, fmt.Errorf("enqueue: %q is not an absolute url", rawURL)
	}
	return domain.WorkItem{Source: source, URL: u.String(), Name: strings.TrimSpace(name)}, nil
}

// checkSourceKnown rejects sources missing from the sources file. A missing
// file skips the check so items can be queued before sources are configured.
func checkSourceKnown(path, source string) error {
	sources, err := extract.LoadSources(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(sources))
	for _, s := range sources {
		ids = append(ids, s.ID)
	}
	if !slices.Contains(ids, source) {
		return fmt.Errorf("enqueue: unknown source %q (known: %s)", source, strings.Join(ids, ", "))
	}
	return nil
}
