package app

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/civicstack/campaign-server/internal/entity"
	"github.com/civicstack/campaign-server/internal/model"
)

// entityInfo describes one catalog entry as printed by the entities command
type entityInfo struct {
	Name      string   `json:"name"`
	Table     string   `json:"table"`
	Route     string   `json:"route"`
	DependsOn []string `json:"depends_on"`
}

func newEntitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List the entity catalog in dependency order",
		Long: `Build the entity catalog without touching a database and print every entity
in the order it is initialized, together with its table, API route and dependencies.`,
		RunE: runEntities,
	}
	cmd.Flags().String("format", "text", "Output format (json|text)")
	return cmd
}

func runEntities(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if format != "json" && format != "text" {
		return fmt.Errorf("unsupported format %q: use json or text", format)
	}

	infos, err := describeEntities(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tTABLE\tROUTE\tDEPENDS ON")
	for _, info := range infos {
		deps := strings.Join(info.DependsOn, ", ")
		if deps == "" {
			deps = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t/api/v1/%s\t%s\n", info.Name, info.Table, info.Route, deps)
	}
	return w.Flush()
}

func describeEntities(cmd *cobra.Command) ([]entityInfo, error) {
	catalog, err := model.NewCatalog()
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	registry := entity.NewRegistry()
	initializer, err := entity.NewInitializer(catalog, registry)
	if err != nil {
		return nil, err
	}
	if err := initializer.Initialize(cmd.Context()); err != nil {
		return nil, fmt.Errorf("failed to initialize entities: %w", err)
	}

	deps := make(map[string][]string, catalog.Len())
	for _, def := range catalog.Definitions() {
		deps[def.Name] = def.DependsOn
	}

	accessor := entity.NewAccessor(registry)
	infos := make([]entityInfo, 0, registry.Len())
	for _, name := range registry.Names() {
		table, err := entity.Lookup[*model.Table](accessor, name)
		if err != nil {
			return nil, err
		}
		dependsOn := deps[name]
		if dependsOn == nil {
			dependsOn = []string{}
		}
		infos = append(infos, entityInfo{Name: name, Table: table.Name, Route: table.Route, DependsOn: dependsOn})
	}
	return infos, nil
}
