package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/BaSui01/flowedit/transport"
	"github.com/BaSui01/flowedit/types"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🔍 inspect 命令
// =============================================================================

func runInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	addr := fs.String("addr", "ws://localhost:8080/ws", "Websocket endpoint")
	apiKey := fs.String("api-key", "", "API key sent as X-API-Key")
	configPath := fs.String("config", "", "Print the effective configuration from this file")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	timeout := fs.Duration("timeout", 10*time.Second, "Overall timeout")
	fs.Parse(args)

	if *noColor {
		color.NoColor = true
	}

	if *configPath != "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		if err := printConfig(os.Stdout, cfg.Sanitized()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to print config: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	header := http.Header{}
	if *apiKey != "" {
		header.Set("X-API-Key", *apiKey)
	}
	client, err := transport.Connect(ctx, *addr, header, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer client.Close()

	if err := inspectWorkflows(ctx, os.Stdout, client); err != nil {
		fmt.Fprintf(os.Stderr, "Inspect failed: %v\n", err)
		os.Exit(1)
	}
}

// printConfig 以 YAML 输出脱敏后的配置
func printConfig(w io.Writer, sanitized map[string]any) error {
	color.New(color.Bold).Fprintln(w, "Configuration")
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(sanitized); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

// inspectWorkflows 列出服务端的全部工作流及其规模
func inspectWorkflows(ctx context.Context, w io.Writer, client *transport.Client) error {
	var list struct {
		Workflows []types.WorkflowSummary `json:"workflows"`
	}
	if err := client.CallInto(ctx, "listWorkflows", nil, &list); err != nil {
		return fmt.Errorf("listWorkflows: %w", err)
	}

	title := color.New(color.Bold)
	dim := color.New(color.Faint)
	warn := color.New(color.FgYellow)

	title.Fprintf(w, "Workflows (%d)\n", len(list.Workflows))
	if len(list.Workflows) == 0 {
		dim.Fprintln(w, "no workflows saved")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAGENTS\tNODES\tLINKS\tUPDATED")
	for _, s := range list.Workflows {
		var wf types.Workflow
		if err := client.CallInto(ctx, "getWorkflow", map[string]string{"workflow_id": s.ID}, &wf); err != nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\t\t\t\n", s.ID, s.Name, warn.Sprint(err.Error()))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			wf.ID, wf.Name,
			len(wf.Agents), len(wf.OrchestrationGraph.Nodes), len(wf.OrchestrationGraph.Links),
			s.UpdatedAt.Format(time.RFC3339),
		)
	}
	return tw.Flush()
}
