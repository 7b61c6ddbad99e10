package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"plantline/internal/app"
	"plantline/internal/config"
	"plantline/internal/db"
	"plantline/internal/domain"
	"plantline/internal/engine"
	"plantline/internal/migrate"
	"plantline/internal/repo"
	"plantline/internal/scheduler"
	"plantline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pl",
	Short: "Plantline CLI",
	Long: `Plantline manages plant maintenance and spare-part inventory.
- Workspace: a .plantline directory holding the database; config lives in plantline.yml and is mirrored into the DB.
- Assets: the machines you maintain, each with a criticality and an operational status.
- Work orders: corrective (failure reports) and preventive jobs, moving pending -> approved -> in_progress -> completed.
- Inventory: spare parts with append-only stock movements; consumption can never drive stock negative.
- Monthly sheets: performed-vs-possible task tallies per asset, validated before closing.
- KPIs: MTBF, MTTR, availability, consumption trends, stockout forecasts and compliance, all derived on demand.
- Event log: diary of changes, view with 'pl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		if viper.GetBool("verbose") {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("PLANTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().Bool("verbose", false, "debug logging")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(assetCmd())
	rootCmd.AddCommand(woCmd())
	rootCmd.AddCommand(invCmd())
	rootCmd.AddCommand(sheetCmd())
	rootCmd.AddCommand(kpiCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- config ---

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default plantline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(name)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "plant", "plant name")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSON(e.Config)
			})
		},
	}
	return cmd
}

// --- assets ---

func assetCmd() *cobra.Command {
	asset := &cobra.Command{Use: "asset", Short: "Manage assets"}
	asset.AddCommand(assetCreateCmd())
	asset.AddCommand(assetListCmd())
	asset.AddCommand(assetShowCmd())
	asset.AddCommand(assetStatusCmd())
	return asset
}

func assetCreateCmd() *cobra.Command {
	var name, desc, location string
	var criticality int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				asset, err := e.CreateAsset(ctx, engine.AssetCreateOptions{
					Name:        name,
					Description: desc,
					Criticality: criticality,
					Location:    location,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(asset)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "asset name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&location, "location", "", "location")
	cmd.Flags().IntVar(&criticality, "criticality", 3, "criticality 1-5")
	return cmd
}

func assetListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				assets, err := e.Repo.ListAssets(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(assets)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Criticality", "Status", "Location"})
				for _, a := range assets {
					tw.AppendRow(table.Row{a.ID, a.Name, a.Criticality, a.Status, a.Location})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func assetShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <asset-id>",
		Short: "Show an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				asset, err := e.Repo.GetAsset(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(asset)
			})
		},
	}
	return cmd
}

func assetStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <asset-id>",
		Short: "Change an asset's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "" {
				return fmt.Errorf("--set required")
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				asset, err := e.SetAssetStatus(ctx, id, status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(asset)
			})
		},
	}
	cmd.Flags().StringVar(&status, "set", "", "operational|maintenance|broken|inactive")
	return cmd
}

// --- work orders ---

func woCmd() *cobra.Command {
	wo := &cobra.Command{Use: "wo", Short: "Manage work orders"}
	wo.AddCommand(woReportCmd())
	wo.AddCommand(woScheduleCmd())
	wo.AddCommand(woListCmd())
	wo.AddCommand(woShowCmd())
	wo.AddCommand(woSetStatusCmd())
	wo.AddCommand(woCompleteCmd())
	return wo
}

func woReportCmd() *cobra.Command {
	var assetID int64
	var title, desc, priority, assignee string
	var machineDown bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report a failure (opens a corrective work order)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				wo, err := e.ReportFailure(ctx, engine.WorkOrderCreateOptions{
					AssetID:     assetID,
					Title:       title,
					Description: desc,
					Priority:    priority,
					ReportedBy:  viper.GetString("actor-id"),
					AssignedTo:  assignee,
					MachineDown: machineDown,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(wo)
			})
		},
	}
	cmd.Flags().Int64Var(&assetID, "asset", 0, "asset id")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "medium", "low|medium|high|emergency")
	cmd.Flags().StringVar(&assignee, "assign", "", "assignee")
	cmd.Flags().BoolVar(&machineDown, "machine-down", false, "flag the asset broken")
	return cmd
}

func woScheduleCmd() *cobra.Command {
	var assetID int64
	var title, desc, priority, assignee string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Open a preventive work order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				wo, err := e.ScheduleMaintenance(ctx, engine.WorkOrderCreateOptions{
					AssetID:     assetID,
					Title:       title,
					Description: desc,
					Priority:    priority,
					ReportedBy:  viper.GetString("actor-id"),
					AssignedTo:  assignee,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(wo)
			})
		},
	}
	cmd.Flags().Int64Var(&assetID, "asset", 0, "asset id")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "medium", "low|medium|high|emergency")
	cmd.Flags().StringVar(&assignee, "assign", "", "assignee")
	return cmd
}

func woListCmd() *cobra.Command {
	var assetID int64
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var statuses []string
				if status != "" {
					statuses = []string{status}
				}
				orders, err := e.Repo.ListWorkOrders(ctx, assetID, time.Time{}, statuses...)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(orders)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Asset", "Kind", "Priority", "Status", "Title"})
				for _, wo := range orders {
					tw.AppendRow(table.Row{wo.ID, wo.AssetID, wo.Kind, wo.Priority, wo.Status, wo.Title})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&assetID, "asset", 0, "filter by asset")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func woShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <work-order-id>",
		Short: "Show a work order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				wo, err := e.Repo.GetWorkOrder(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(wo)
			})
		},
	}
	return cmd
}

func woSetStatusCmd() *cobra.Command {
	var status, assignee string
	cmd := &cobra.Command{
		Use:   "set-status <work-order-id>",
		Short: "Move a work order along the board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.WorkOrderStatusOptions{
					ID:      id,
					Status:  status,
					ActorID: viper.GetString("actor-id"),
				}
				if assignee != "" {
					opts.AssignedTo = &assignee
				}
				wo, err := e.SetWorkOrderStatus(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(wo)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending|approved|in_progress|completed|cancelled")
	cmd.Flags().StringVar(&assignee, "assign", "", "assignee")
	return cmd
}

func woCompleteCmd() *cobra.Command {
	var downtime, laborHours, laborCost, partsCost float64
	var notes string
	cmd := &cobra.Command{
		Use:   "complete <work-order-id>",
		Short: "Complete a work order with closing figures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				completion := &engine.CompletionDetails{SolutionNotes: notes}
				if cmd.Flags().Changed("downtime") {
					completion.DowntimeHours = &downtime
				}
				if cmd.Flags().Changed("labor-hours") {
					completion.LaborHours = &laborHours
				}
				if cmd.Flags().Changed("labor-cost") {
					completion.LaborCost = &laborCost
				}
				if cmd.Flags().Changed("parts-cost") {
					completion.PartsCost = &partsCost
				}
				wo, err := e.SetWorkOrderStatus(ctx, engine.WorkOrderStatusOptions{
					ID:         id,
					Status:     domain.StatusCompleted,
					Completion: completion,
					ActorID:    viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(wo)
			})
		},
	}
	cmd.Flags().Float64Var(&downtime, "downtime", 0, "downtime hours")
	cmd.Flags().Float64Var(&laborHours, "labor-hours", 0, "labor hours")
	cmd.Flags().Float64Var(&laborCost, "labor-cost", 0, "labor cost")
	cmd.Flags().Float64Var(&partsCost, "parts-cost", 0, "parts cost")
	cmd.Flags().StringVar(&notes, "notes", "", "solution notes")
	return cmd
}

// --- inventory ---

func invCmd() *cobra.Command {
	inv := &cobra.Command{Use: "inv", Short: "Manage inventory"}
	inv.AddCommand(invAddCmd())
	inv.AddCommand(invListCmd())
	inv.AddCommand(invLowStockCmd())
	inv.AddCommand(invMoveCmd())
	inv.AddCommand(invMovementsCmd())
	inv.AddCommand(invTrendCmd())
	inv.AddCommand(invStockoutCmd())
	return inv
}

func invAddCmd() *cobra.Command {
	var name, sku, unit, location string
	var quantity, minQuantity, unitCost float64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an inventory item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.CreateItem(ctx, engine.ItemCreateOptions{
					Name:        name,
					SKU:         sku,
					Quantity:    quantity,
					MinQuantity: minQuantity,
					Unit:        unit,
					UnitCost:    unitCost,
					Location:    location,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "item name")
	cmd.Flags().StringVar(&sku, "sku", "", "sku")
	cmd.Flags().Float64Var(&quantity, "qty", 0, "initial quantity")
	cmd.Flags().Float64Var(&minQuantity, "min-qty", 0, "reorder threshold")
	cmd.Flags().StringVar(&unit, "unit", "", "unit of measure")
	cmd.Flags().Float64Var(&unitCost, "unit-cost", 0, "unit cost")
	cmd.Flags().StringVar(&location, "location", "", "storage location")
	return cmd
}

func invListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inventory items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListItems(ctx)
				if err != nil {
					return err
				}
				return renderItems(items)
			})
		},
	}
	return cmd
}

func invLowStockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "low-stock",
		Short: "Items at or below their reorder threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.LowStockItems(ctx)
				if err != nil {
					return err
				}
				return renderItems(items)
			})
		},
	}
	return cmd
}

func renderItems(items []domain.InventoryItem) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "SKU", "Qty", "Min", "Unit", "Location"})
	for _, it := range items {
		tw.AppendRow(table.Row{it.ID, it.Name, it.SKU, it.Quantity, it.MinQuantity, it.Unit, it.Location})
	}
	tw.Render()
	return nil
}

func invMoveCmd() *cobra.Command {
	var movementType, reference string
	var quantity float64
	cmd := &cobra.Command{
		Use:   "move <item-id>",
		Short: "Record a stock movement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.RecordMovement(ctx, engine.MovementOptions{
					ItemID:    id,
					Type:      movementType,
					Quantity:  quantity,
					Reference: reference,
					ActorID:   viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&movementType, "type", "", "purchase|consumption|adjustment|return")
	cmd.Flags().Float64Var(&quantity, "qty", 0, "quantity")
	cmd.Flags().StringVar(&reference, "ref", "", "reference, e.g. a work order")
	return cmd
}

func invMovementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "movements <item-id>",
		Short: "List an item's stock movements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				movements, err := e.Repo.ListMovements(ctx, id, time.Time{})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(movements)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Qty", "Reference", "At"})
				for _, m := range movements {
					tw.AppendRow(table.Row{m.ID, m.MovementType, m.Quantity, m.Reference, m.CreatedAt.Format(time.RFC3339)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func invTrendCmd() *cobra.Command {
	var windowDays int
	var daily bool
	cmd := &cobra.Command{
		Use:   "trend [item-id]",
		Short: "Consumption and purchase trend",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var itemID int64
			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				itemID = id
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				points, err := e.ConsumptionTrend(ctx, itemID, windowDays, daily)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(points)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Period", "Consumption", "Purchases"})
				for _, p := range points {
					tw.AppendRow(table.Row{p.Period, p.Consumption, p.Purchases})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&windowDays, "window", 0, "window in days (default from config)")
	cmd.Flags().BoolVar(&daily, "daily", false, "daily buckets instead of monthly")
	return cmd
}

func invStockoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stockout <item-id>",
		Short: "Stockout forecast for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, forecast, err := e.StockoutForecast(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"item": item, "forecast": forecast})
				}
				days := "never (no consumption)"
				if forecast.DaysUntilStockout != nil {
					days = fmt.Sprintf("%d days", *forecast.DaysUntilStockout)
				}
				fmt.Printf("%s: %g %s on hand\n", item.Name, item.Quantity, item.Unit)
				fmt.Printf("  avg daily consumption: %g\n", forecast.AvgDailyConsumption)
				fmt.Printf("  projected stockout:    %s\n", days)
				fmt.Printf("  recommended order:     %g\n", forecast.RecommendedOrderQuantity)
				return nil
			})
		},
	}
	return cmd
}

// --- monthly sheets ---

func sheetCmd() *cobra.Command {
	sheet := &cobra.Command{Use: "sheet", Short: "Monthly maintenance sheets"}
	sheet.AddCommand(sheetTaskAddCmd())
	sheet.AddCommand(sheetTasksCmd())
	sheet.AddCommand(sheetCloseCmd())
	sheet.AddCommand(sheetListCmd())
	sheet.AddCommand(sheetComplianceCmd())
	return sheet
}

func sheetTaskAddCmd() *cobra.Command {
	var assetID int64
	var component, name, frequency string
	cmd := &cobra.Command{
		Use:   "task-add",
		Short: "Define a recurring maintenance task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				td, err := e.CreateTaskDefinition(ctx, engine.TaskDefinitionOptions{
					AssetID:   assetID,
					Component: component,
					Name:      name,
					Frequency: frequency,
					ActorID:   viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(td)
			})
		},
	}
	cmd.Flags().Int64Var(&assetID, "asset", 0, "asset id")
	cmd.Flags().StringVar(&component, "component", "", "component")
	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&frequency, "frequency", "", "daily|weekly|biweekly|monthly|quarterly|semiannual|annual")
	return cmd
}

func sheetTasksCmd() *cobra.Command {
	var assetID int64
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List an asset's task definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				defs, err := e.Repo.ListTaskDefinitions(ctx, assetID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(defs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Component", "Name", "Frequency"})
				for _, d := range defs {
					tw.AppendRow(table.Row{d.ID, d.Component, d.Name, d.Frequency})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&assetID, "asset", 0, "asset id")
	return cmd
}

// parseCount parses a --count value of the form taskDefID:performed:possible.
func parseCount(raw string) (engine.SheetTaskCount, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return engine.SheetTaskCount{}, fmt.Errorf("invalid count %q, want id:performed:possible", raw)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return engine.SheetTaskCount{}, fmt.Errorf("invalid count %q: %w", raw, err)
	}
	performed, err := strconv.Atoi(parts[1])
	if err != nil {
		return engine.SheetTaskCount{}, fmt.Errorf("invalid count %q: %w", raw, err)
	}
	possible, err := strconv.Atoi(parts[2])
	if err != nil {
		return engine.SheetTaskCount{}, fmt.Errorf("invalid count %q: %w", raw, err)
	}
	return engine.SheetTaskCount{TaskDefID: id, Performed: performed, Possible: possible}, nil
}

func sheetCloseCmd() *cobra.Command {
	var assetID int64
	var month, year, workingDays int
	var observations string
	var rawCounts []string
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close a monthly sheet",
		Long:  "Close a monthly maintenance sheet. Counts are given as --count taskDefID:performed:possible, repeatable.",
		RunE: func(cmd *cobra.Command, args []string) error {
			counts := make([]engine.SheetTaskCount, 0, len(rawCounts))
			for _, raw := range rawCounts {
				c, err := parseCount(raw)
				if err != nil {
					return err
				}
				counts = append(counts, c)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sheet, err := e.CloseSheet(ctx, engine.SheetCloseOptions{
					AssetID:      assetID,
					Month:        month,
					Year:         year,
					WorkingDays:  workingDays,
					Observations: observations,
					Counts:       counts,
					ActorID:      viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(sheet)
			})
		},
	}
	cmd.Flags().Int64Var(&assetID, "asset", 0, "asset id")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12")
	cmd.Flags().IntVar(&year, "year", 0, "year")
	cmd.Flags().IntVar(&workingDays, "working-days", 0, "working days in the month")
	cmd.Flags().StringVar(&observations, "observations", "", "free-form notes")
	cmd.Flags().StringArrayVar(&rawCounts, "count", nil, "taskDefID:performed:possible")
	return cmd
}

func sheetListCmd() *cobra.Command {
	var assetID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List monthly sheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sheets, err := e.Repo.ListSheets(ctx, assetID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sheets)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Asset", "Month", "Year", "Working days", "Status"})
				for _, s := range sheets {
					tw.AppendRow(table.Row{s.ID, s.AssetID, s.Month, s.Year, s.WorkingDays, s.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&assetID, "asset", 0, "filter by asset")
	return cmd
}

func sheetComplianceCmd() *cobra.Command {
	var assetID int64
	var month, year int
	cmd := &cobra.Command{
		Use:   "compliance",
		Short: "Compliance report for one closed sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.SheetCompliance(ctx, assetID, month, year)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				fmt.Printf("global: %.1f%%\n", report.GlobalPercent)
				for freq, pct := range report.ByFrequency {
					fmt.Printf("  %-12s %.1f%%\n", freq, pct)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&assetID, "asset", 0, "asset id")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12")
	cmd.Flags().IntVar(&year, "year", 0, "year")
	return cmd
}

// --- KPIs ---

func kpiCmd() *cobra.Command {
	kpi := &cobra.Command{Use: "kpi", Short: "Reliability and inventory KPIs"}
	kpi.AddCommand(kpiReliabilityCmd())
	kpi.AddCommand(kpiDashboardCmd())
	return kpi
}

func kpiReliabilityCmd() *cobra.Command {
	var assetID int64
	cmd := &cobra.Command{
		Use:   "reliability",
		Short: "MTBF, MTTR and availability for an asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.AssetReliability(ctx, assetID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				fmt.Printf("asset %d (windows: %dd reliability, %dd availability)\n",
					report.AssetID, report.ReliabilityDays, report.AvailabilityDays)
				fmt.Printf("  MTBF:         %s\n", fmtHours(report.MTBFHours))
				fmt.Printf("  MTTR:         %s\n", fmtHours(report.MTTRHours))
				fmt.Printf("  availability: %s\n", fmtPercent(report.AvailabilityPct))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&assetID, "asset", 0, "asset id")
	return cmd
}

func kpiDashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Plant-wide overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				dash, err := e.DashboardReport(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(dash)
				}
				m := dash.Metrics
				fmt.Printf("work orders: %d total, %d completed (%d preventive / %d corrective, %.0f%% preventive)\n",
					m.TotalWorkOrders, m.Completed, m.PreventiveCount, m.CorrectiveCount, m.PreventiveRatePercent)
				fmt.Printf("avg downtime: %.1fh, maintenance cost: %d\n", m.AvgDowntimeHours, m.TotalCost)
				fmt.Printf("MTBF %s / MTTR %s / availability %s\n", fmtHours(m.MTBF), fmtHours(m.MTTR), fmtPercent(m.Availability))
				if len(dash.LowStock) > 0 {
					fmt.Println("low stock:")
					for _, it := range dash.LowStock {
						fmt.Printf("  %s: %g on hand (min %g)\n", it.Name, it.Quantity, it.MinQuantity)
					}
				}
				if len(dash.TopConsumers) > 0 {
					fmt.Println("top consumers:")
					for _, c := range dash.TopConsumers {
						fmt.Printf("  %s: %g %s\n", c.Name, c.Total, c.Unit)
					}
				}
				return nil
			})
		},
	}
	return cmd
}

func fmtHours(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1fh", *v)
}

func fmtPercent(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

// --- schedules ---

func scheduleCmd() *cobra.Command {
	sched := &cobra.Command{Use: "schedule", Short: "Preventive maintenance schedules"}
	sched.AddCommand(scheduleAddCmd())
	sched.AddCommand(scheduleListCmd())
	sched.AddCommand(scheduleRunCmd())
	return sched
}

func scheduleAddCmd() *cobra.Command {
	var assetID int64
	var title, firstDue string
	var frequencyDays int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			var due time.Time
			if firstDue != "" {
				t, err := time.Parse(time.RFC3339, firstDue)
				if err != nil {
					return fmt.Errorf("invalid --first-due: %w", err)
				}
				due = t
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateSchedule(ctx, engine.ScheduleCreateOptions{
					AssetID:       assetID,
					Title:         title,
					FrequencyDays: frequencyDays,
					FirstDue:      due,
					ActorID:       viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().Int64Var(&assetID, "asset", 0, "asset id")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().IntVar(&frequencyDays, "every", 0, "frequency in days")
	cmd.Flags().StringVar(&firstDue, "first-due", "", "first due date (RFC3339)")
	return cmd
}

func scheduleListCmd() *cobra.Command {
	var assetID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				schedules, err := e.ListSchedules(ctx, assetID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(schedules)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Asset", "Title", "Every", "Next due", "Active"})
				for _, s := range schedules {
					tw.AppendRow(table.Row{s.ID, s.AssetID, s.Title, fmt.Sprintf("%dd", s.FrequencyDays), s.NextDueDate.Format("2006-01-02"), s.Active})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&assetID, "asset", 0, "filter by asset")
	return cmd
}

func scheduleRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open work orders for every schedule past due",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.GenerateDueWorkOrders(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if len(created) == 0 {
					fmt.Println("nothing due")
					return nil
				}
				return printJSONOrTable(created)
			})
		},
	}
	return cmd
}

// --- event log ---

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	return cmd
}

// --- api keys ---

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "API keys"}
	key.AddCommand(apikeyCreateCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint an API key for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, secret, err := e.MintAPIKey(ctx, viper.GetString("actor-id"), name)
				if err != nil {
					return err
				}
				fmt.Printf("api key %s for %s\n", key.ID, key.ActorID)
				fmt.Println("secret (shown once):", secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name")
	return cmd
}

// --- serve ---

func serveCmd() *cobra.Command {
	var addr, basePath string
	var withScheduler, allowAnonymous bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			cfg, err := app.ResolveConfig(cmd.Context(), workspace, r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)

			logger := logrus.StandardLogger()
			authCfg := server.AuthConfig{
				JWTSecret:      os.Getenv("PLANTLINE_JWT_SECRET"),
				AllowAnonymous: allowAnonymous,
				Logger:         logger,
			}
			if authCfg.JWTSecret == "" && !allowAnonymous {
				return fmt.Errorf("PLANTLINE_JWT_SECRET is required unless --allow-anonymous is set")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg, Logger: logger})
			if err != nil {
				return err
			}

			if withScheduler {
				sched := scheduler.New(e, cfg.Scheduler.Spec, logger)
				if err := sched.Start(cmd.Context()); err != nil {
					return err
				}
				defer sched.Stop()
			}

			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.WithFields(logrus.Fields{"addr": addr, "base_path": basePath}).Info("serving Plantline API")
			fmt.Printf("Serving Plantline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "run the preventive maintenance sweep")
	cmd.Flags().BoolVar(&allowAnonymous, "allow-anonymous", false, "allow unauthenticated requests (dev only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	cfg, err := app.ResolveConfig(ctx, workspace, r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
