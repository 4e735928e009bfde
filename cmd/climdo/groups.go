package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/climdo/internal/agenda"
	"github.com/five82/climdo/internal/api"
	"github.com/five82/climdo/internal/app"
)

func (c *cli) groupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "groups",
		Aliases: []string{"group", "g"},
		Short:   "List and change task groups",
	}
	cmd.AddCommand(
		c.groupsListCmd(),
		c.groupsAddCmd(),
		c.groupsEditCmd(),
		c.groupActionCmd("rm ID...", "Move groups to the trash", "Trashed", func(ctx context.Context, rt *app.Runtime, id int64) (api.Group, error) {
			g, _ := rt.Groups.Lookup(id)
			return g, rt.Groups.Delete(ctx, id)
		}),
		c.groupActionCmd("restore ID...", "Restore groups from the trash", "Restored", func(ctx context.Context, rt *app.Runtime, id int64) (api.Group, error) {
			return rt.Groups.Restore(ctx, id)
		}),
		c.groupActionCmd("purge ID...", "Delete trashed groups forever", "Purged", func(ctx context.Context, rt *app.Runtime, id int64) (api.Group, error) {
			g, _ := rt.Groups.Lookup(id)
			return g, rt.Groups.PermanentDelete(ctx, id)
		}),
	)
	return cmd
}

func (c *cli) groupsListCmd() *cobra.Command {
	var trash, asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List groups with their task counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(func(rt *app.Runtime) error {
				ctx := cmd.Context()
				if err := rt.Groups.Fetch(ctx); err != nil {
					return err
				}
				if err := rt.Tasks.Fetch(ctx); err != nil {
					return err
				}
				var groups []api.Group
				for _, g := range rt.Groups.Snapshot().Items {
					if g.IsDeleted == trash {
						groups = append(groups, g)
					}
				}
				sort.SliceStable(groups, func(i, j int) bool {
					return strings.ToLower(groups[i].Name) < strings.ToLower(groups[j].Name)
				})

				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, groups)
				}
				if len(groups) == 0 {
					if trash {
						fmt.Fprintln(out, "No trashed groups.")
					} else {
						fmt.Fprintln(out, "No groups.")
					}
					return nil
				}

				tasks := rt.Tasks.Snapshot().Items
				now := time.Now()
				rows := make([][]string, 0, len(groups))
				for _, g := range groups {
					id := strconv.FormatInt(g.ID, 10)
					if trash {
						days := agenda.DaysLeft(g.ParsedDeletedAt(), now)
						rows = append(rows, []string{id, g.Name, plural(days, "day", "days")})
						continue
					}
					count := plural(len(agenda.ByGroup(tasks, g.ID)), "task", "tasks")
					rows = append(rows, []string{id, g.Name, g.Description, count})
				}
				if trash {
					writeSection(out, "Trashed groups", []string{"ID", "Group", "Purged in"}, rows)
				} else {
					writeSection(out, "Groups", []string{"ID", "Group", "Description", "Tasks"}, rows)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&trash, "trash", false, "list trashed groups instead")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func (c *cli) groupsAddCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "add NAME...",
		Short: "Create a group",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := api.GroupDraft{
				Name:        strings.TrimSpace(strings.Join(args, " ")),
				Description: strings.TrimSpace(description),
			}
			return c.withSession(func(rt *app.Runtime) error {
				group, err := rt.Groups.Create(cmd.Context(), draft)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added group #%d: %s\n", group.ID, group.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "group description")
	return cmd
}

func (c *cli) groupsEditCmd() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Rename a group or change its description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			var changes api.GroupChanges
			if cmd.Flags().Changed("name") {
				changes.Name = &name
			}
			if cmd.Flags().Changed("description") {
				changes.Description = &description
			}
			if changes == (api.GroupChanges{}) {
				return fmt.Errorf("nothing to change: pass --name or --description")
			}
			return c.withSession(func(rt *app.Runtime) error {
				ctx := cmd.Context()
				if err := rt.Groups.Fetch(ctx); err != nil {
					return err
				}
				group, err := rt.Groups.Update(ctx, ids[0], changes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated group #%d: %s\n", ids[0], group.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new group name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	return cmd
}

func (c *cli) groupActionCmd(use, short, verb string, run func(context.Context, *app.Runtime, int64) (api.Group, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return c.withSession(func(rt *app.Runtime) error {
				ctx := cmd.Context()
				if err := rt.Groups.Fetch(ctx); err != nil {
					return err
				}
				for _, id := range ids {
					group, err := run(ctx, rt, id)
					if err != nil {
						return err
					}
					if group.Name != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "%s group #%d: %s\n", verb, id, group.Name)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%s group #%d\n", verb, id)
					}
				}
				return nil
			})
		},
	}
}
