// Package project provides the commands that manage BloodHound projects.
package project

import "github.com/spf13/cobra"

// NewCommands returns every project command. They are registered directly on
// the root command so that "hound start corp" works without a group prefix.
func NewCommands() []*cobra.Command {
	return []*cobra.Command{
		NewCmdProjectList(),
		NewCmdProjectShow(),
		NewCmdProjectStart(),
		NewCmdProjectData(),
		NewCmdProjectClear(),
		NewCmdProjectStop(),
		NewCmdProjectDelete(),
	}
}
