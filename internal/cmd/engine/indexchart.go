package engine

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	command "github.com/platzio/platz-engine/internal/cmd"
	"github.com/platzio/platz-engine/internal/chartext"
	"github.com/platzio/platz-engine/internal/store"
)

// IndexChartCommand ingests one packaged chart into the database: parses its
// extension documents and tag, ensures the kind and registry rows, and
// inserts the chart. Parse failures are recorded on the chart row; the chart
// stays listable.
type IndexChartCommand struct {
	DatabaseURL string `usage:"Postgres connection URL" env:"DATABASE_URL"`
	Archive     string `usage:"Path to the packaged chart archive"`
	Registry    string `usage:"Registry domain name"`
	Repo        string `usage:"Repository name within the registry"`
	Kind        string `usage:"Deployment kind of the chart"`
	Tag         string `usage:"Image tag of the chart"`
	Digest      string `usage:"Image digest of the chart"`
}

func (c *IndexChartCommand) Run(cmd *cobra.Command, _ []string) error {
	if c.Archive == "" || c.Registry == "" || c.Repo == "" || c.Kind == "" || c.Tag == "" {
		return errors.New("archive, registry, repo, kind and tag are required")
	}
	ctx := cmd.Context()

	s, err := store.New(ctx, c.DatabaseURL)
	if err != nil {
		return err
	}
	defer s.Close()

	ext, err := chartext.LoadArchive(c.Archive)
	if err != nil {
		return err
	}

	kind, err := s.Kinds().Ensure(ctx, c.Kind)
	if err != nil {
		return err
	}
	registry, err := s.Registries().Ensure(ctx, c.Registry, c.Repo, kind.ID)
	if err != nil {
		return err
	}

	newChart := store.NewChart{
		HelmRegistryID: registry.ID,
		ImageDigest:    c.Digest,
		ImageTag:       c.Tag,
		ValuesUI:       ext.RawValuesUI,
		ActionsSchema:  ext.RawActions,
		Features:       ext.RawFeatures,
		ResourceTypes:  ext.RawResourceTypes,
	}
	if ext.Err != nil {
		message := ext.Err.Error()
		newChart.Error = &message
	}
	tag := chartext.ParseTag(c.Tag)
	newChart.ParsedVersion = tag.Version
	newChart.ParsedBranch = tag.Branch
	newChart.ParsedCommit = tag.Commit
	newChart.ParsedRevision = tag.Revision

	chart, err := s.Charts().Create(ctx, newChart)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"chart": chart.ID,
		"tag":   chart.ImageTag,
	}).Info("Chart indexed")
	return nil
}

func indexChartCommand() *cobra.Command {
	return command.Command(&IndexChartCommand{}, cobra.Command{
		Use:   "index-chart",
		Short: "Ingest a packaged chart into the database",
	})
}
