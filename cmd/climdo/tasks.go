package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/climdo/internal/agenda"
	"github.com/five82/climdo/internal/api"
	"github.com/five82/climdo/internal/app"
)

func (c *cli) tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "t"},
		Short:   "List and change tasks",
	}
	cmd.AddCommand(
		c.tasksListCmd(),
		c.tasksAddCmd(),
		c.tasksEditCmd(),
		c.taskActionCmd("done ID...", "Mark tasks complete", "Completed", func(ctx context.Context, rt *app.Runtime, id int64) (api.Task, error) {
			return rt.Tasks.Complete(ctx, id)
		}),
		c.taskActionCmd("undone ID...", "Mark tasks open again", "Reopened", func(ctx context.Context, rt *app.Runtime, id int64) (api.Task, error) {
			return rt.Tasks.Uncomplete(ctx, id)
		}),
		c.taskActionCmd("rm ID...", "Move tasks to the trash", "Trashed", func(ctx context.Context, rt *app.Runtime, id int64) (api.Task, error) {
			t, _ := rt.Tasks.Lookup(id)
			return t, rt.Tasks.Delete(ctx, id)
		}),
		c.taskActionCmd("restore ID...", "Restore tasks from the trash", "Restored", func(ctx context.Context, rt *app.Runtime, id int64) (api.Task, error) {
			return rt.Tasks.Restore(ctx, id)
		}),
		c.taskActionCmd("purge ID...", "Delete trashed tasks forever", "Purged", func(ctx context.Context, rt *app.Runtime, id int64) (api.Task, error) {
			t, _ := rt.Tasks.Lookup(id)
			return t, rt.Tasks.PermanentDelete(ctx, id)
		}),
	)
	return cmd
}

func (c *cli) tasksListCmd() *cobra.Command {
	var viewName string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks by view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, ok := agenda.ParseView(strings.ToLower(strings.TrimSpace(viewName)))
			if !ok || view == agenda.ViewGroups {
				return fmt.Errorf("unknown view %q: use today, upcoming, completed, trash or all", viewName)
			}
			return c.withSession(func(rt *app.Runtime) error {
				ctx := cmd.Context()
				if err := rt.Tasks.Fetch(ctx); err != nil {
					return err
				}
				if err := rt.Groups.Fetch(ctx); err != nil {
					return err
				}
				tasks := rt.Tasks.Snapshot().Items
				out := cmd.OutOrStdout()
				now := time.Now()

				if view == agenda.ViewTrash {
					entries := agenda.Trash(tasks, now).All()
					if asJSON {
						return writeJSON(out, entries)
					}
					if len(entries) == 0 {
						fmt.Fprintln(out, "Trash is empty.")
						return nil
					}
					rows := make([][]string, 0, len(entries))
					for _, e := range entries {
						rows = append(rows, []string{strconv.FormatInt(e.Task.ID, 10), e.Task.Text, plural(e.DaysLeft, "day", "days")})
					}
					writeSection(out, "Trash", []string{"ID", "Task", "Purged in"}, rows)
					return nil
				}

				sections := taskSections(view, tasks, now)
				if asJSON {
					return writeJSON(out, sections)
				}
				if len(sections) == 0 {
					fmt.Fprintln(out, "No tasks.")
					return nil
				}
				names := groupNames(rt.Groups.Snapshot().Items)
				for _, s := range sections {
					writeSection(out, s.Title, []string{"ID", "Task", "Due", "Group", "Status"}, taskTableRows(s.Tasks, names))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&viewName, "view", string(agenda.ViewAll), "today, upcoming, completed, trash or all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of tables")
	return cmd
}

// taskSections lays out a non-trash view the way the dashboard does.
func taskSections(view agenda.View, tasks []api.Task, now time.Time) []agenda.Section {
	var sections []agenda.Section
	add := func(title string, ts []api.Task) {
		if len(ts) > 0 {
			sections = append(sections, agenda.Section{Title: title, Tasks: ts})
		}
	}
	switch view {
	case agenda.ViewToday:
		add("Due today", agenda.Today(tasks, now))
		add("Done today", agenda.CompletedToday(tasks, now))
	case agenda.ViewUpcoming:
		sections = agenda.Upcoming(tasks, now).Sections()
	case agenda.ViewCompleted:
		sections = agenda.CompletedByPeriod(tasks, now).Sections()
	default:
		var open []api.Task
		for _, t := range agenda.Active(tasks) {
			if !t.IsCompleted {
				open = append(open, t)
			}
		}
		add("Open", open)
		add("Completed", agenda.Completed(tasks))
	}
	return sections
}

func groupNames(groups []api.Group) map[int64]string {
	names := make(map[int64]string, len(groups))
	for _, g := range groups {
		names[g.ID] = g.Name
	}
	return names
}

func taskTableRows(tasks []api.Task, names map[int64]string) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		group := "-"
		if t.GroupID != nil {
			if name, ok := names[*t.GroupID]; ok {
				group = name
			}
		}
		rows = append(rows, []string{strconv.FormatInt(t.ID, 10), t.Text, formatDue(t), group, statusMark(t)})
	}
	return rows
}

func (c *cli) tasksAddCmd() *cobra.Command {
	var due string
	var group int64
	cmd := &cobra.Command{
		Use:   "add TEXT...",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dueAt, err := parseDue(due)
			if err != nil {
				return err
			}
			draft := api.TaskDraft{Text: strings.TrimSpace(strings.Join(args, " ")), DueAt: dueAt}
			if cmd.Flags().Changed("group") {
				draft.GroupID = &group
			}
			return c.withSession(func(rt *app.Runtime) error {
				task, err := rt.Tasks.Create(cmd.Context(), draft)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added #%d: %s\n", task.ID, task.Text)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&group, "group", 0, "group ID")
	return cmd
}

func (c *cli) tasksEditCmd() *cobra.Command {
	var text, due string
	var group int64
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a task's text, due date or group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			var changes api.TaskChanges
			flags := cmd.Flags()
			if flags.Changed("text") {
				changes.Text = &text
			}
			if flags.Changed("due") {
				dueAt, err := parseDue(due)
				if err != nil {
					return err
				}
				changes.DueAt = &dueAt
			}
			if flags.Changed("group") {
				changes.GroupID = &group
			}
			if changes == (api.TaskChanges{}) {
				return fmt.Errorf("nothing to change: pass --text, --due or --group")
			}
			return c.withSession(func(rt *app.Runtime) error {
				ctx := cmd.Context()
				if err := rt.Tasks.Fetch(ctx); err != nil {
					return err
				}
				task, err := rt.Tasks.Update(ctx, ids[0], changes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated #%d: %s\n", ids[0], task.Text)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "new task text")
	cmd.Flags().StringVar(&due, "due", "", "new due date (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&group, "group", 0, "new group ID")
	return cmd
}

// taskActionCmd builds a command that applies run to each ID argument,
// stopping at the first failure.
func (c *cli) taskActionCmd(use, short, verb string, run func(context.Context, *app.Runtime, int64) (api.Task, error)) *cobra.Command {
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
				// Fetch first so trashed and purged tasks can be named.
				if err := rt.Tasks.Fetch(ctx); err != nil {
					return err
				}
				for _, id := range ids {
					task, err := run(ctx, rt, id)
					if err != nil {
						return err
					}
					if task.Text != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "%s #%d: %s\n", verb, id, task.Text)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%s #%d\n", verb, id)
					}
				}
				return nil
			})
		},
	}
}
