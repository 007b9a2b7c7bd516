package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Work with plans",
}

var planShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a plan",
	Long:  `Show a plan's schedule, allowed types and planned work items.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		client, profile, err := connect(ctx)
		if err != nil {
			fatal("Failed to connect", err)
		}
		defer client.Close(ctx)

		project, err := openProject(ctx, client, profile)
		if err != nil {
			fatal("Failed to open project", err)
		}
		plan, err := project.Plan(ctx, args[0])
		if err != nil {
			fatal("Failed to load plan", err)
		}

		fmt.Println(plan.String())
		if due, ok := plan.DueDate(); ok {
			fmt.Printf("Due: %s\n", due.Format("2006-01-02"))
		}
		if started, ok := plan.StartedOn(); ok {
			fmt.Printf("Started: %s\n", started.Format("2006-01-02"))
		}
		if types := plan.AllowedTypes(); len(types) > 0 {
			fmt.Printf("Allowed types: %s\n", strings.Join(types, ", "))
		}

		items, err := plan.WorkItems(ctx)
		if err != nil {
			fatal("Failed to list planned items", err)
		}
		if len(items) > 0 {
			fmt.Println()
			for _, item := range items {
				fmt.Printf("  %s\n", item.String())
			}
		}
	},
}

var planAddCmd = &cobra.Command{
	Use:   "add [plan-id] [workitem-id]",
	Short: "Plan a work item",
	Long:  `Add a work item to a plan. The plan must allow the item's type.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		client, profile, err := connect(ctx)
		if err != nil {
			fatal("Failed to connect", err)
		}
		defer client.Close(ctx)

		project, err := openProject(ctx, client, profile)
		if err != nil {
			fatal("Failed to open project", err)
		}
		plan, err := project.Plan(ctx, args[0])
		if err != nil {
			fatal("Failed to load plan", err)
		}
		item, err := project.WorkItem(ctx, args[1])
		if err != nil {
			fatal("Failed to load work item", err)
		}

		if err := plan.AddItem(ctx, item); err != nil {
			fatal("Failed to plan work item", err)
		}
		fmt.Printf("Added '%s' to plan '%s'.\n", item.ID(), plan.ID())
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planShowCmd)
	planCmd.AddCommand(planAddCmd)
}
