package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/almforge/go-polarion/pkg/core"
)

var (
	workitemJSON   bool
	createType     string
	createTitle    string
	createDesc     string
	setStatus      string
	setFields      []string
	setDescription string
)

var workitemCmd = &cobra.Command{
	Use:     "workitem",
	Aliases: []string{"wi"},
	Short:   "Work with work items",
}

var workitemShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a work item",
	Long:  `Show a work item's fields with the description rendered as plain text, or the raw field map with --json.`,
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
		item, err := project.WorkItem(ctx, args[0])
		if err != nil {
			fatal("Failed to load work item", err)
		}

		if workitemJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(item.Fields()); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}

		fmt.Println(item.String())
		fmt.Printf("Type:   %s\n", item.Type())
		fmt.Printf("Status: %s\n", item.Status())
		if severity := item.Severity(); severity != "" {
			fmt.Printf("Severity: %s\n", severity)
		}
		if created, ok := item.Created(); ok {
			fmt.Printf("Created: %s\n", created.Format("2006-01-02 15:04"))
		}
		if author, err := item.Author(); err == nil && author != nil {
			fmt.Printf("Author: %s\n", author.String())
		}

		if item.Description() != "" {
			text, err := item.PlainDescription(ctx)
			if err != nil {
				fatal("Failed to render description", err)
			}
			fmt.Println()
			fmt.Println(text)
		}
	},
}

var workitemCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a work item",
	Long:  `Create a work item of the given type in the project.`,
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

		initial := core.Fields{"title": createTitle}
		if createDesc != "" {
			initial["description"] = core.HTML(createDesc)
		}
		item, err := project.CreateWorkItem(ctx, createType, initial)
		if err != nil {
			fatal("Failed to create work item", err)
		}
		fmt.Printf("Work item '%s' created.\n", item.ID())
	},
}

var workitemSetCmd = &cobra.Command{
	Use:   "set [id]",
	Short: "Edit a work item",
	Long: `Apply field edits to a work item. Only the changed fields travel
to the server. Status changes go through the workflow and are rejected
when the target status is not reachable.`,
	Args: cobra.ExactArgs(1),
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
		item, err := project.WorkItem(ctx, args[0])
		if err != nil {
			fatal("Failed to load work item", err)
		}

		for _, pair := range setFields {
			key, value, found := strings.Cut(pair, "=")
			if !found || key == "" {
				fatal("Bad --field", fmt.Errorf("%q is not key=value", pair))
			}
			item.Set(key, value)
		}
		if setDescription != "" {
			item.Set("description", core.HTML(setDescription))
		}
		if len(item.Dirty()) > 0 {
			if err := item.Save(ctx); err != nil {
				fatal("Failed to save work item", err)
			}
		}

		if setStatus != "" {
			if err := item.SetStatus(ctx, setStatus); err != nil {
				fatal("Failed to set status", err)
			}
		}

		fmt.Printf("Work item '%s' saved.\n", item.ID())
	},
}

func init() {
	rootCmd.AddCommand(workitemCmd)

	workitemCmd.AddCommand(workitemShowCmd)
	workitemShowCmd.Flags().BoolVar(&workitemJSON, "json", false, "Output in JSON format")

	workitemCmd.AddCommand(workitemCreateCmd)
	workitemCreateCmd.Flags().StringVarP(&createType, "type", "t", "", "Work item type id (task, defect, ...)")
	workitemCreateCmd.Flags().StringVar(&createTitle, "title", "", "Work item title")
	workitemCreateCmd.Flags().StringVar(&createDesc, "description", "", "Description (HTML)")
	workitemCreateCmd.MarkFlagRequired("type")
	workitemCreateCmd.MarkFlagRequired("title")

	workitemCmd.AddCommand(workitemSetCmd)
	workitemSetCmd.Flags().StringVar(&setStatus, "status", "", "Target status id")
	workitemSetCmd.Flags().StringArrayVarP(&setFields, "field", "f", nil, "Field edit as key=value (repeatable)")
	workitemSetCmd.Flags().StringVar(&setDescription, "description", "", "New description (HTML)")
}
