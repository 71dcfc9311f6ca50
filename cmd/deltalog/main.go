package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/deltalog/deltalog/deltalog"
	"github.com/deltalog/deltalog/deltalog/ir"
	"github.com/deltalog/deltalog/deltalog/query"
	"github.com/deltalog/deltalog/deltalog/runtime"
)

func main() {
	var interactive bool
	var help bool
	var verbose bool
	var queryStr string
	var workers int

	flag.BoolVar(&interactive, "i", false, "interactive mode")
	flag.BoolVar(&help, "h", false, "show help")
	flag.BoolVar(&verbose, "verbose", false, "verbose mode (color-highlight queries)")
	flag.StringVar(&queryStr, "query", "", "run a single query and exit, e.g. \"tc a _\"")
	flag.IntVar(&workers, "workers", 0, "round-evaluation worker count (0 = runtime.NumCPU())")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "A demo shell for the deltalog incremental Datalog engine.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                         # run the transitive-closure demo\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i                      # interactive mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -query 'tc a _'         # run a single query and exit\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	program, err := demoProgram()
	if err != nil {
		log.Fatalf("failed to build demo program: %v", err)
	}
	opts := runtime.Options{Workers: workers}
	if verbose {
		opts.Trace = func(format string, args ...any) {
			fmt.Println(color.CyanString(format, args...))
		}
	}
	rt, err := runtime.New(program, opts)
	if err != nil {
		log.Fatalf("program rejected: %v", err)
	}

	switch {
	case queryStr != "":
		runSingleQuery(rt, queryStr, verbose)
	case interactive:
		runInteractive(rt, verbose)
	default:
		runDemo(rt)
	}
}

// demoProgram builds a transitive-closure program: base edges derive tc
// directly, and tc extends one edge at a time. Rule/program construction
// is ordinarily the job of a surface-syntax front-end; the demo shell
// hardcodes this one program.
func demoProgram() (*ir.Program, error) {
	edge := deltalog.NewSymbol("edge")
	tc := deltalog.NewSymbol("tc")

	x, y, z := ir.Variable("x"), ir.Variable("y"), ir.Variable("z")

	base := ir.Rule{
		Head: ir.Atom{Relation: tc, Terms: []ir.Term{x, y}},
		Body: []ir.BodyAtom{
			{Atom: ir.Atom{Relation: edge, Terms: []ir.Term{x, y}}},
		},
	}
	step := ir.Rule{
		Head: ir.Atom{Relation: tc, Terms: []ir.Term{x, z}},
		Body: []ir.BodyAtom{
			{Atom: ir.Atom{Relation: edge, Terms: []ir.Term{x, y}}},
			{Atom: ir.Atom{Relation: tc, Terms: []ir.Term{y, z}}},
		},
	}

	return ir.NewProgram([]ir.Rule{base, step})
}

func runDemo(rt *runtime.Runtime) {
	fmt.Println(color.GreenString("=== deltalog demo: transitive closure ==="))

	edge := deltalog.NewSymbol("edge")
	edges := [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}}
	for _, e := range edges {
		must(rt.Insert(edge, e[0], e[1]))
	}
	fmt.Printf("Inserted %d edges. safe() = %v\n", len(edges), rt.Safe())

	must(rt.Poll(context.Background()))
	fmt.Printf("Polled. safe() = %v\n\n", rt.Safe())

	printQuery(rt, "tc", query.Wildcard(), query.Wildcard())
	printQuery(rt, "tc", query.Const("a"), query.Wildcard())

	fmt.Println(color.YellowString("\n--- incremental insert ---"))
	must(rt.Insert(edge, "d", "e"))
	fmt.Printf("Inserted (d,e). safe() = %v\n", rt.Safe())
	must(rt.Poll(context.Background()))
	fmt.Printf("Polled. safe() = %v\n\n", rt.Safe())
	printQuery(rt, "tc", query.Wildcard(), query.Wildcard())
}

func printQuery(rt *runtime.Runtime, rel string, terms ...query.Term) {
	pattern := query.New(deltalog.NewSymbol(rel), terms...)
	facts, err := rt.Query(pattern)
	if err != nil {
		fmt.Printf("query error: %v\n", err)
		return
	}
	fmt.Println(query.FormatResult(rt.Universe(), pattern.Relation, facts))
}

func runInteractive(rt *runtime.Runtime, verbose bool) {
	fmt.Println(color.GreenString("=== deltalog interactive ==="))
	fmt.Println("Commands:")
	fmt.Println("  insert <rel> <v...>       queue an extensional insert")
	fmt.Println("  remove <rel> <v|_...>     queue removal of every matching fact")
	fmt.Println("  query  <rel> <v|_...>     answer a pattern query over S")
	fmt.Println("  contains <rel> <v...>     check a ground fact")
	fmt.Println("  poll                      run the deletion then insertion sub-epochs")
	fmt.Println("  safe                      report whether any delta is pending")
	fmt.Println("  .exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == ".exit" {
			return
		}
		runCommand(rt, line, verbose)
	}
}

func runCommand(rt *runtime.Runtime, line string, verbose bool) {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "insert":
		if len(args) < 1 {
			fmt.Println("usage: insert <rel> <v...>")
			return
		}
		values := make([]any, len(args)-1)
		for i, a := range args[1:] {
			values[i] = parseValue(a)
		}
		if err := rt.Insert(deltalog.NewSymbol(args[0]), values...); err != nil {
			fmt.Println(color.RedString("error: %v", err))
			return
		}
		fmt.Println("queued")

	case "remove":
		if len(args) < 1 {
			fmt.Println("usage: remove <rel> <v|_...>")
			return
		}
		if err := rt.Remove(query.New(deltalog.NewSymbol(args[0]), parsePattern(args[1:])...)); err != nil {
			fmt.Println(color.RedString("error: %v", err))
			return
		}
		fmt.Println("queued")

	case "query":
		if len(args) < 1 {
			fmt.Println("usage: query <rel> <v|_...>")
			return
		}
		pattern := query.New(deltalog.NewSymbol(args[0]), parsePattern(args[1:])...)
		facts, err := rt.Query(pattern)
		if err != nil {
			fmt.Println(color.RedString("error: %v", err))
			return
		}
		if verbose {
			fmt.Println(color.CyanString("%d matching facts", len(facts)))
		}
		fmt.Println(query.FormatResult(rt.Universe(), pattern.Relation, facts))

	case "contains":
		if len(args) < 1 {
			fmt.Println("usage: contains <rel> <v...>")
			return
		}
		values := make([]any, len(args)-1)
		for i, a := range args[1:] {
			values[i] = parseValue(a)
		}
		ok, err := rt.Contains(deltalog.NewSymbol(args[0]), values...)
		if err != nil {
			fmt.Println(color.RedString("error: %v", err))
			return
		}
		fmt.Println(ok)

	case "poll":
		start := time.Now()
		if err := rt.Poll(context.Background()); err != nil {
			fmt.Println(color.RedString("error: %v", err))
			return
		}
		fmt.Printf("polled in %s\n", time.Since(start))

	case "safe":
		fmt.Println(rt.Safe())

	default:
		fmt.Println("unknown command")
	}
}

func runSingleQuery(rt *runtime.Runtime, queryStr string, verbose bool) {
	fields := strings.Fields(queryStr)
	if len(fields) < 1 {
		fmt.Fprintln(os.Stderr, "usage: -query '<rel> <v|_...>'")
		os.Exit(1)
	}

	if verbose {
		fmt.Println(color.CyanString("query: %s", queryStr))
	}

	pattern := query.New(deltalog.NewSymbol(fields[0]), parsePattern(fields[1:])...)
	start := time.Now()
	facts, err := rt.Query(pattern)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(query.FormatResult(rt.Universe(), pattern.Relation, facts))
	fmt.Printf("(%.3fms)\n", float64(elapsed.Microseconds())/1000.0)
}

func parsePattern(tokens []string) []query.Term {
	terms := make([]query.Term, len(tokens))
	for i, t := range tokens {
		if t == "_" {
			terms[i] = query.Wildcard()
		} else {
			terms[i] = query.Const(parseValue(t))
		}
	}
	return terms
}

func parseValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func must(err error) {
	if err != nil {
		log.Fatalf("%v", err)
	}
}
