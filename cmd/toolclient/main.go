// Command toolclient asks a decision maker which server tool answers a
// question, invokes it and prints the outcome.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/sourcegraph/conc/pool"

	"github.com/wilhg/toolwire/pkg/adapters/embedding"
	_ "github.com/wilhg/toolwire/pkg/adapters/embedding/gemini"
	_ "github.com/wilhg/toolwire/pkg/adapters/embedding/hashed"
	_ "github.com/wilhg/toolwire/pkg/adapters/embedding/openai"
	"github.com/wilhg/toolwire/pkg/adapters/llm"
	_ "github.com/wilhg/toolwire/pkg/adapters/llm/gemini"
	_ "github.com/wilhg/toolwire/pkg/adapters/llm/openai"
	_ "github.com/wilhg/toolwire/pkg/adapters/llm/scripted"
	"github.com/wilhg/toolwire/pkg/config"
	"github.com/wilhg/toolwire/pkg/decision"
	"github.com/wilhg/toolwire/pkg/eval"
	"github.com/wilhg/toolwire/pkg/logger"
	"github.com/wilhg/toolwire/pkg/mcpclient"
	"github.com/wilhg/toolwire/pkg/mcpserver"
	"github.com/wilhg/toolwire/pkg/metrics"
	otto "github.com/wilhg/toolwire/pkg/otel"
	"github.com/wilhg/toolwire/pkg/prompt"
	"github.com/wilhg/toolwire/pkg/runtime"
	"github.com/wilhg/toolwire/pkg/shortlist"
)

var version = "dev"

type options struct {
	baseURL     string
	question    string
	batch       string
	concurrency int
	evalDir     string
	replay      bool
	transport   string
	jsonOut     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "toolclient: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("toolclient", flag.ContinueOnError)
	fs.StringVar(&o.baseURL, "base-url", "", "server base URL (overrides BASE_API_URL)")
	fs.StringVar(&o.question, "q", "", "ask one question and exit")
	fs.StringVar(&o.batch, "batch", "", "file with one question per line, run concurrently")
	fs.IntVar(&o.concurrency, "concurrency", 4, "parallel cycles in -batch mode")
	fs.StringVar(&o.evalDir, "eval", "", "directory of decision fixtures to score")
	fs.BoolVar(&o.replay, "replay", false, "with -eval, replay fixtures against the server")
	fs.StringVar(&o.transport, "transport", "http", "server transport: http or mcp")
	fs.BoolVar(&o.jsonOut, "json", false, "print full cycle reports as JSON")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if o.transport != "http" && o.transport != "mcp" {
		return options{}, fmt.Errorf("unknown transport %q", o.transport)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.baseURL != "" {
		cfg.Client.BaseURL = o.baseURL
	}
	log, err := logger.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	shutdown, err := otto.Init(ctx, otto.Config{ServiceName: "toolclient", ServiceVersion: version, UseStdout: cfg.App.OTelStdout, SampleRatio: &cfg.App.OTelSampleRatio})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if o.evalDir != "" && !o.replay {
		sum, err := eval.EvaluateDecisionFixtures(os.DirFS(o.evalDir), ".")
		if err != nil {
			return err
		}
		printSummary(stdout, sum)
		return nil
	}

	client, closeClient, err := dialClient(ctx, o.transport, cfg, log)
	if err != nil {
		return err
	}
	defer closeClient()

	if o.replay {
		fixtures, err := eval.LoadFixtures(os.DirFS(o.evalDir), ".")
		if err != nil {
			return err
		}
		printSummary(stdout, eval.Replay(ctx, client, fixtures, runtime.WithLogger(log)))
		return nil
	}

	newLoop, err := loopFactory(ctx, cfg, client, log)
	if err != nil {
		return err
	}
	p := printer{out: stdout, json: o.jsonOut}
	switch {
	case o.question != "":
		p.report(newLoop().Run(ctx, o.question))
		return nil
	case o.batch != "":
		questions, err := readQuestions(o.batch)
		if err != nil {
			return err
		}
		for _, rep := range runBatch(ctx, questions, o.concurrency, newLoop) {
			p.report(rep)
		}
		return nil
	default:
		return interactive(ctx, stdin, p, newLoop())
	}
}

func dialClient(ctx context.Context, transport string, cfg *config.Config, log *logger.Logger) (mcpclient.Client, func(), error) {
	if transport == "mcp" {
		endpoint := strings.TrimRight(cfg.Client.BaseURL, "/") + mcpserver.BridgePath
		sc, err := mcpclient.DialMCP(ctx, endpoint, otto.HTTPClient(),
			mcpclient.WithSessionTimeouts(cfg.Client.DiscoveryTimeout, cfg.Client.InvocationTimeout))
		if err != nil {
			return nil, nil, err
		}
		return sc, func() { _ = sc.Close() }, nil
	}
	hc, err := mcpclient.New(cfg.Client.BaseURL,
		mcpclient.WithHTTPClient(otto.HTTPClient()),
		mcpclient.WithDiscoveryTimeout(cfg.Client.DiscoveryTimeout),
		mcpclient.WithInvocationTimeout(cfg.Client.InvocationTimeout),
		mcpclient.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}
	return hc, func() {}, nil
}

// loopFactory resolves the provider and prompt template once; every call
// returns an independent Loop sharing them.
func loopFactory(ctx context.Context, cfg *config.Config, client mcpclient.Client, log *logger.Logger) (func() *runtime.Loop, error) {
	prov, err := cfg.LLM.Resolve()
	if err != nil {
		return nil, err
	}
	model, err := llm.New(ctx, prov.Name, llm.Config{APIKey: prov.APIKey, Model: prov.Model, BaseURL: prov.BaseURL, JSON: true})
	if err != nil {
		return nil, err
	}
	maker := decision.NewLLMMaker(model,
		decision.WithRateLimit(cfg.Client.DecisionsPerMinute),
		decision.WithMakerLogger(log),
	)

	templates := prompt.DefaultStore()
	if cfg.Client.PromptTemplate != "" {
		p, diff, err := templates.LoadOverride(cfg.Client.PromptTemplate)
		if err != nil {
			return nil, fmt.Errorf("prompt template: %w", err)
		}
		log.Infow("prompt template override", "version", p.Version, "source", cfg.Client.PromptTemplate)
		log.Debugw("prompt template diff", "diff", diff)
	}
	var est prompt.TokenEstimator = prompt.RuneEstimator
	if prov.Name != "scripted" {
		if est, err = prompt.NewTikTokenEstimator(prov.Model); err != nil {
			log.Warnw("token estimator unavailable, counting runes", "error", err)
		}
	}
	builder := prompt.NewBuilder(prompt.WithStore(templates), prompt.WithTokenEstimator(est))
	m := metrics.New(false)

	opts := []runtime.Option{
		runtime.WithBuilder(builder),
		runtime.WithDecisionTimeout(cfg.Client.DecisionTimeout),
		runtime.WithMetrics(m),
		runtime.WithLogger(log),
	}
	if cfg.Client.ShortlistMax > 0 {
		sl, err := newShortlist(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, runtime.WithShortlist(sl))
	}
	return func() *runtime.Loop { return runtime.New(client, maker, opts...) }, nil
}

func newShortlist(ctx context.Context, cfg *config.Config, log *logger.Logger) (*shortlist.Shortlister, error) {
	name := cfg.Client.EmbeddingProvider
	emb, err := embedding.New(ctx, name, embedding.Config{
		APIKey: cfg.LLM.EmbeddingKey(name),
		Model:  cfg.Client.EmbeddingModel,
		Dim:    cfg.Client.EmbeddingDim,
	})
	if err != nil {
		return nil, fmt.Errorf("shortlist: %w", err)
	}
	log.Infow("catalog shortlist enabled", "embedder", name, "max", cfg.Client.ShortlistMax)
	return shortlist.New(emb, cfg.Client.ShortlistMax, shortlist.WithLogger(log))
}

func interactive(ctx context.Context, stdin io.Reader, p printer, loop *runtime.Loop) error {
	in := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(p.out, "Enter your question: ")
		if !in.Scan() {
			fmt.Fprintln(p.out)
			return in.Err()
		}
		if q := strings.TrimSpace(in.Text()); q != "" {
			p.report(loop.Run(ctx, q))
		}
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(p.out, "Ask another question? (y/n): ")
		if !in.Scan() {
			fmt.Fprintln(p.out)
			return in.Err()
		}
		if !strings.EqualFold(strings.TrimSpace(in.Text()), "y") {
			return nil
		}
	}
}

type indexed struct {
	i   int
	rep runtime.Report
}

// runBatch runs each question on its own Loop, at most n at a time, and
// returns the reports in input order.
func runBatch(ctx context.Context, questions []string, n int, newLoop func() *runtime.Loop) []runtime.Report {
	p := pool.NewWithResults[indexed]().WithMaxGoroutines(n)
	for i, q := range questions {
		p.Go(func() indexed {
			return indexed{i: i, rep: newLoop().Run(ctx, q)}
		})
	}
	res := p.Wait()
	sort.Slice(res, func(a, b int) bool { return res[a].i < res[b].i })
	out := make([]runtime.Report, len(res))
	for k, r := range res {
		out[k] = r.rep
	}
	return out
}

func readQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var qs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" && !strings.HasPrefix(q, "#") {
			qs = append(qs, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, errors.New("batch file has no questions")
	}
	return qs, nil
}

type printer struct {
	out  io.Writer
	json bool
}

func (p printer) report(rep runtime.Report) {
	if p.json {
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rep)
		return
	}
	if rep.Decision != nil && rep.Decision.ToolUse {
		fmt.Fprintf(p.out, "Using tool: %s\n", rep.Decision.ToolName)
	}
	fmt.Fprintln(p.out, rep.Summary())
}

func printSummary(w io.Writer, sum eval.Summary) {
	for _, d := range sum.Details {
		fmt.Fprintln(w, "FAIL", d)
	}
	fmt.Fprintln(w, sum.String())
}
