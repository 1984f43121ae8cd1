package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ruffel/provision/config"
	"github.com/spf13/cobra"
)

func (a *app) newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List saved projects and their targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := a.loadProjects()
			if err != nil {
				return err
			}

			printProjects(cmd, file)

			return nil
		},
	}

	cmd.AddCommand(
		a.newProjectAddCmd(),
		a.newProjectRemoveCmd(),
		a.newTargetAddCmd(),
		a.newTargetRemoveCmd(),
	)

	return cmd
}

func printProjects(cmd *cobra.Command, file *config.File) {
	out := cmd.OutOrStdout()

	if len(file.Projects) == 0 {
		_, _ = fmt.Fprintln(out, infoStyle.Render("no projects configured"))

		return
	}

	for _, p := range file.Projects {
		_, _ = fmt.Fprintln(out, titleStyle.Render(p.Name))

		for _, t := range p.Configurations {
			auth := "password"
			if t.KeyPath != "" {
				auth = "key"
			}

			_, _ = fmt.Fprintf(out, "  %-12s %s@%s  save=%s  backup=%s  auth=%s\n",
				t.Alias, t.User, t.Profile().Address(), t.RemoteSavePath, t.RemoteBackupPath, auth)
		}
	}
}

// mutate loads the projects file, applies fn and saves the result.
func (a *app) mutate(fn func(*config.File) error) error {
	path := a.v.GetString(keyProjectsFile)

	file, err := config.Load(path)
	if err != nil {
		return err
	}

	if err := fn(file); err != nil {
		return err
	}

	return file.Save(path)
}

func (a *app) newProjectAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Create an empty project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.mutate(func(f *config.File) error {
				_, err := f.AddProject(args[0])

				return err
			})
			if err != nil {
				return err
			}

			cmd.Println(checkStyle.Render("created project " + args[0]))

			return nil
		},
	}
}

func (a *app) newProjectRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a project and all of its targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.mutate(func(f *config.File) error { return f.RemoveProject(args[0]) }); err != nil {
				return err
			}

			cmd.Println(checkStyle.Render("removed project " + args[0]))

			return nil
		},
	}
}

func (a *app) newTargetAddCmd() *cobra.Command {
	var flags targetFlags

	cmd := &cobra.Command{
		Use:   "add-target",
		Short: "Save a target in a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.project == "" || strings.TrimSpace(flags.target) == "" {
				return fmt.Errorf("--project and --target are required")
			}

			var id uuid.UUID

			err := a.mutate(func(f *config.File) error {
				p, err := f.Project(flags.project)
				if err != nil {
					return err
				}

				t := flags.toTarget()
				if err := p.Add(t); err != nil {
					return err
				}

				id = t.ID

				return nil
			})
			if err != nil {
				return err
			}

			cmd.Println(checkStyle.Render(fmt.Sprintf("saved target %s (%s)", flags.target, id)))

			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func (a *app) newTargetRemoveCmd() *cobra.Command {
	var project, alias string

	cmd := &cobra.Command{
		Use:   "remove-target",
		Short: "Delete a saved target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := a.mutate(func(f *config.File) error {
				t, err := f.Find(project, alias)
				if err != nil {
					return err
				}

				p, _ := f.Project(project)

				return p.Remove(t.ID)
			})
			if err != nil {
				return err
			}

			cmd.Println(checkStyle.Render("removed target " + alias))

			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "project holding the target")
	cmd.Flags().StringVarP(&alias, "target", "t", "", "target alias")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}
