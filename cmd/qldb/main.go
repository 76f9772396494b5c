// Command qldb is a REPL and one-shot SQL runner over the embedded
// engine, grounded on the teacher's cmd/mssqldef's jessevdk/go-flags
// option parsing and golang.org/x/term password-prompt dependency
// (repurposed here to distinguish an interactive terminal from a pipe).
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/k0kubun/pp/v3"
	"golang.org/x/term"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/config"
	"github.com/sqldef/qldb/engine"
	"github.com/sqldef/qldb/parser"
	"github.com/sqldef/qldb/types"
)

var version string

type options struct {
	ConfigFile string `short:"c" long:"config" description:"Path to a YAML config file" value-name:"config.yaml"`
	DataDir    string `short:"d" long:"data-dir" description:"Directory to persist databases in" value-name:"dir" default:"qldb-data"`
	Database   string `short:"D" long:"database" description:"Database to USE on startup" value-name:"db_name"`
	File       string `short:"f" long:"file" description:"Run the SQL statements in this file instead of starting a REPL" value-name:"sql_file"`
	BTreeOrder uint   `long:"btree-order" description:"B-tree order for indexes rebuilt at startup (DDL-created indexes use 50)" value-name:"order" default:"50"`
	Timeout    string `long:"timeout" description:"Per-statement timeout, e.g. 5s (default: none)" value-name:"duration"`
	Explain    bool   `long:"explain" description:"Print the planner's chosen plan before running each SELECT"`
	DryRun     bool   `long:"dry-run" description:"Parse and plan but don't execute statements"`
	Help       bool   `long:"help" description:"Show this help"`
	Version    bool   `long:"version" description:"Show this version"`
}

func parseOptions(args []string) (config.Config, options) {
	var opts options
	p := flags.NewParser(&opts, flags.None)
	p.Usage = "[options]"
	if _, err := p.ParseArgs(args); err != nil {
		log.Fatal(err)
	}

	if opts.Help {
		p.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg := config.Default()
	if opts.ConfigFile != "" {
		loaded, err := config.Load(opts.ConfigFile)
		if err != nil {
			log.Fatalf("failed to load config %q: %s", opts.ConfigFile, err)
		}
		cfg = loaded
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.Database != "" {
		cfg.DefaultDatabase = opts.Database
	}
	if opts.BTreeOrder != 0 {
		cfg.BTreeOrder = int(opts.BTreeOrder)
	}
	if opts.Timeout != "" {
		d, err := time.ParseDuration(opts.Timeout)
		if err != nil {
			log.Fatalf("invalid --timeout %q: %s", opts.Timeout, err)
		}
		cfg.StatementTimeout = d
	}
	return cfg, opts
}

func main() {
	cfg, opts := parseOptions(os.Args[1:])

	eng, err := engine.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("failed to start engine: %s", err)
	}

	const sessionID = 1
	if cfg.DefaultDatabase != "" && cfg.DefaultDatabase != eng.CurrentDatabase() {
		eng.Query(sessionID, eng.CurrentDatabase(), fmt.Sprintf("USE %s", cfg.DefaultDatabase))
	}

	if opts.File != "" {
		buf, err := os.ReadFile(opts.File)
		if err != nil {
			log.Fatalf("failed to read %q: %s", opts.File, err)
		}
		runBatch(eng, sessionID, string(buf), opts)
		return
	}

	runREPL(eng, sessionID, opts)
}

func runBatch(eng *engine.Engine, sessionID int64, sql string, opts options) {
	db := eng.CurrentDatabase()
	if opts.Explain {
		explainAll(eng, db, sql)
	}
	if opts.DryRun {
		return
	}
	for _, res := range eng.QueryMultiple(sessionID, db, sql) {
		printResult(res)
		if !res.Success {
			os.Exit(1)
		}
	}
}

// runREPL reads statements from stdin, ending one at a line containing ';',
// printing a prompt only when stdin is an interactive terminal (spec
// §6's CLI: behave quietly when piped, like `mysql < script.sql`). The
// current database is re-read from the engine before every statement
// since a USE inside the REPL changes it mid-session.
func runREPL(eng *engine.Engine, sessionID int64, opts options) {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var buf strings.Builder
	prompt := func() {
		if interactive {
			if buf.Len() == 0 {
				fmt.Print("qldb> ")
			} else {
				fmt.Print("   -> ")
			}
		}
	}

	prompt()
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if !strings.Contains(line, ";") {
			prompt()
			continue
		}

		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		if stmt == "" {
			prompt()
			continue
		}
		if stmt == "exit;" || stmt == "quit;" {
			break
		}

		db := eng.CurrentDatabase()
		if opts.Explain {
			explainAll(eng, db, stmt)
		}
		if !opts.DryRun {
			for _, res := range eng.QueryMultiple(sessionID, db, stmt) {
				printResult(res)
			}
		}
		prompt()
	}
	if interactive {
		fmt.Println()
	}
}

func explainAll(eng *engine.Engine, db, sql string) {
	stmts, err := parser.ParseMultiple(sql)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse error: %s\n", err)
		return
	}
	for _, stmt := range stmts {
		sel, ok := stmt.(ast.Select)
		if !ok {
			continue
		}
		plan, err := eng.Plan(db, &sel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "explain error: %s\n", err)
			continue
		}
		pp.Println(plan)
	}
}

func printResult(res *engine.Result) {
	if !res.Success {
		if res.Error != nil {
			fmt.Fprintf(os.Stderr, "ERROR [%s]: %s\n", res.Error.Code, res.Error.Message)
		} else {
			fmt.Fprintln(os.Stderr, "ERROR: unknown failure")
		}
		return
	}
	if res.Columns == nil {
		fmt.Printf("OK (%d rows affected, %s)\n", res.Affected, res.ExecutionTime)
		if res.InsertID != 0 {
			fmt.Printf("  insert_id: %d\n", res.InsertID)
		}
		return
	}
	printTable(res)
}

func printTable(res *engine.Result) {
	widths := make([]int, len(res.Columns))
	for i, c := range res.Columns {
		widths[i] = len(c)
	}
	rendered := make([][]string, len(res.Rows))
	for i, row := range res.Rows {
		rendered[i] = make([]string, len(res.Columns))
		for j, c := range res.Columns {
			s := cellString(row[c])
			rendered[i][j] = s
			if len(s) > widths[j] {
				widths[j] = len(s)
			}
		}
	}

	printRow(res.Columns, widths)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	printRow(sep, widths)
	for _, r := range rendered {
		printRow(r, widths)
	}
	fmt.Printf("(%d rows, %s)\n", len(res.Rows), res.ExecutionTime)
}

func printRow(cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = c + strings.Repeat(" ", widths[i]-len(c))
	}
	fmt.Println(strings.Join(parts, " | "))
}

func cellString(v types.Value) string {
	if v.IsNull() {
		return "NULL"
	}
	return v.AsString()
}
