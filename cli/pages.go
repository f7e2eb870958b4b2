package cli

// This file contains the pages command for inspecting a page set.

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/perfgo/pagerunner/model"
	"github.com/urfave/cli/v2"
)

func (a *App) pages(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("expected exactly one page set file")
	}
	path := ctx.Args().First()

	set, err := model.LoadPageSet(path)
	if err != nil {
		return err
	}
	liveSites := ctx.Bool("use-live-sites") || a.config.Run.UseLiveSites

	t := table.NewWriter()
	t.SetOutputMirror(a.out)
	t.SetTitle(path)
	t.AppendHeader(table.Row{"#", "Name", "URL", "Startup URL", "Credentials", "Archive"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "URL", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for i, p := range set.Pages {
		archive := set.ArchivePathFor(p)
		if liveSites {
			archive = "-"
		}
		t.AppendRow(table.Row{
			i,
			set.DisplayName(p),
			p.URL,
			p.StartupURL,
			p.Credentials,
			archive,
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d pages", len(set.Pages))})
	t.SetStyle(table.StyleLight)
	t.Render()

	if set.CredentialsPath != "" {
		fmt.Fprintf(a.out, "Credentials: %s\n", set.CredentialsPath)
	}
	if set.UserAgentType != "" {
		fmt.Fprintf(a.out, "User agent: %s\n", set.UserAgentType)
	}
	return nil
}
