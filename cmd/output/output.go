// Package output provides functions to print messages with optional color formatting
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/oar-cd/hound/domain"
	"github.com/oar-cd/hound/project"
)

const (
	Plain   = color.FgWhite
	Success = color.FgGreen
	Warning = color.FgYellow
	Error   = color.FgRed

	timeFormat = "2006-01-02 15:04:05"
)

var maybeColorize func(kind color.Attribute, tmpl string, a ...any) string

// InitColors sets up color functions based on environment
func InitColors(isColorDisabled bool) {
	if color.NoColor || isColorDisabled {
		maybeColorize = func(kind color.Attribute, tmpl string, a ...any) string {
			return fmt.Sprintf(tmpl, a...)
		}
	} else {
		maybeColorize = func(kind color.Attribute, tmpl string, a ...any) string {
			return color.New(kind).SprintfFunc()(tmpl, a...)
		}
	}
}

// PrintMessage formats a message with color (if enabled) and a trailing newline
func PrintMessage(kind color.Attribute, tmpl string, a ...any) string {
	if maybeColorize == nil || kind == Plain {
		return fmt.Sprintf(tmpl+"\n", a...)
	}
	return fmt.Sprintln(maybeColorize(kind, tmpl, a...))
}

// FprintPlain prints to the command's standard output
func FprintPlain(cmd *cobra.Command, tmpl string, a ...any) error {
	_, err := fmt.Fprint(cmd.OutOrStdout(), PrintMessage(Plain, tmpl, a...))
	return err
}

func FprintSuccess(cmd *cobra.Command, tmpl string, a ...any) error {
	_, err := fmt.Fprint(cmd.OutOrStdout(), PrintMessage(Success, tmpl, a...))
	return err
}

// FprintWarning prints to the command's standard error
func FprintWarning(cmd *cobra.Command, tmpl string, a ...any) error {
	_, err := fmt.Fprint(cmd.ErrOrStderr(), PrintMessage(Warning, tmpl, a...))
	return err
}

func FprintError(cmd *cobra.Command, tmpl string, a ...any) error {
	_, err := fmt.Fprint(cmd.ErrOrStderr(), PrintMessage(Error, tmpl, a...))
	return err
}

// ErrorObject is the machine-readable form of a failed command
type ErrorObject struct {
	Error   domain.ErrorKind `json:"error"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

// FprintJSONError writes err as a single JSON object followed by a newline
func FprintJSONError(w io.Writer, err error) error {
	return json.NewEncoder(w).Encode(ErrorObject{
		Error:   domain.Kind(err),
		Message: err.Error(),
		Hint:    domain.FormatErrorForUser(err),
	})
}

func PrintTable(header []string, data [][]string) (string, error) {
	buf := strings.Builder{}

	table := tablewriter.NewTable(
		&buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines: tw.Lines{
					ShowHeaderLine: tw.Off,
				},
				Separators: tw.Separators{
					BetweenColumns: tw.Off,
				},
			},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{PerColumn: []tw.Align{tw.AlignRight, tw.AlignLeft}},
			},
		}))

	if len(header) > 0 {
		table.Header(header)
	}

	if err := table.Bulk(data); err != nil {
		return "", fmt.Errorf("bulk adding data to table: %w", err)
	}

	if err := table.Render(); err != nil {
		return "", fmt.Errorf("rendering table: %w", err)
	}

	return buf.String(), nil
}

// Endpoints lists where a project's services can be reached
func Endpoints(p *domain.Project) [][]string {
	return [][]string{
		{"BloodHound", p.BaseURL()},
		{"Neo4j Browser", fmt.Sprintf("http://localhost:%d", p.Ports.Neo4j)},
		{"Bolt", fmt.Sprintf("bolt://localhost:%d", p.Ports.Bolt)},
	}
}

func gdsLabel(noGDS bool) string {
	if noGDS {
		return "disabled"
	}
	return "enabled"
}

// PrintProjectDetails renders a project. The password is masked unless reveal is set.
func PrintProjectDetails(info *project.ProjectInfo, username string, reveal bool) (string, error) {
	p := info.Project

	password := strings.Repeat("*", 8)
	if reveal {
		password = p.Password
	}

	data := [][]string{
		{"Name", p.Name},
		{"Directory", p.Dir()},
		{"State", p.State.String()},
		{"Runtime", info.Runtime.String()},
	}
	data = append(data, Endpoints(p)...)
	data = append(data,
		[][]string{
			{"Username", username},
			{"Password", password},
			{"GDS Plugin", gdsLabel(p.NoGDS)},
			{"Bootstrap Timeout", p.Timeout.String()},
			{"Created At", p.CreatedAt.Format(timeFormat)},
			{"Updated At", p.UpdatedAt.Format(timeFormat)},
		}...,
	)

	table, err := PrintTable([]string{}, data)
	if err != nil {
		return "", fmt.Errorf("printing project details table: %w", err)
	}
	return table, nil
}

func PrintIngestions(ingestions []*domain.Ingestion) (string, error) {
	header := []string{"Started At", "Batch", "Files", "Status", "Archive"}

	var data [][]string
	for _, i := range ingestions {
		batch := "-"
		if i.BatchID != 0 {
			batch = strconv.FormatInt(i.BatchID, 10)
		}
		data = append(data, []string{
			i.StartedAt.Format(timeFormat),
			batch,
			strconv.Itoa(i.FileCount),
			i.Status.String(),
			i.ArchivePath,
		})
	}

	table, err := PrintTable(header, data)
	if err != nil {
		return "", fmt.Errorf("printing ingestion table: %w", err)
	}
	return table, nil
}

func PrintProjectList(infos []*project.ProjectInfo) (string, error) {
	if len(infos) == 0 {
		return PrintMessage(Plain, "No projects found."), nil
	}

	header := []string{
		"Name",
		"State",
		"Runtime",
		"Web",
		"Bolt",
		"Neo4j",
		"Updated At",
	}
	var data [][]string
	for _, info := range infos {
		p := info.Project
		data = append(data, []string{
			p.Name,
			p.State.String(),
			info.Runtime.String(),
			strconv.Itoa(p.Ports.Web),
			strconv.Itoa(p.Ports.Bolt),
			strconv.Itoa(p.Ports.Neo4j),
			p.UpdatedAt.Format(timeFormat),
		})
	}

	table, err := PrintTable(header, data)
	if err != nil {
		return "", fmt.Errorf("printing project list table: %w", err)
	}

	return table, nil
}

// PrintStartSummary renders the endpoints and credentials of a started project
func PrintStartSummary(result *project.StartResult, username string) (string, error) {
	p := result.Project

	data := Endpoints(p)
	data = append(data,
		[][]string{
			{"Username", username},
			{"Password", p.Password},
			{"Directory", p.Dir()},
			{"Log", p.LogPath()},
		}...,
	)

	table, err := PrintTable([]string{}, data)
	if err != nil {
		return "", fmt.Errorf("printing start summary table: %w", err)
	}
	return table, nil
}

// CLI flag for disabling color output

// NoColor is a flag that can be used to disable colored output in the CLI.
var NoColor = &noColorFlag{set: false}

type noColorFlag struct {
	set bool
}

func (f *noColorFlag) Set(value string) error {
	// This is a boolean flag, so we ignore the value and just mark it as set
	f.set = true
	return nil
}

func (f *noColorFlag) String() string {
	if f.set {
		return "true"
	}
	return "false"
}

func (f *noColorFlag) Type() string {
	return "bool"
}

// IsSet returns true if the --no-color flag was explicitly set
func (f *noColorFlag) IsSet() bool {
	return f.set
}

// IsBoolFlag tells pflag this is a boolean flag (no argument required)
func (f *noColorFlag) IsBoolFlag() bool {
	return true
}

// JSON switches error reporting to one JSON object on stderr
var JSON bool
