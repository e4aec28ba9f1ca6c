// Copyright 2024 The Stu Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// stu is a small build tool in the Make lineage, distinguished by dynamic
// dependencies, parametrized rules, transient targets, and concatenated
// (Cartesian-product) dependencies.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"stu/internal/dep"
	"stu/internal/engine"
	"stu/internal/flags"
	"stu/internal/graph"
	"stu/internal/job"
	"stu/internal/mainloop"
	"stu/internal/parser"
	"stu/internal/place"
	"stu/internal/ruleset"
)

var (
	inputFile   = flag.String("f", "", "read rules from `file` instead of main.stu")
	jobs        = flag.Int("j", 1, "allow `n` jobs to run at once")
	keepGoing   = flag.Bool("k", false, "keep going after errors in independent subtrees")
	disableK    = flag.Bool("K", false, "do not remove partially built files after a failure or interrupt")
	order       = flag.String("m", "dfs", "scheduling order: \"dfs\" or \"random\"")
	seed        = flag.Int64("M", 0, "seed for -m random")
	traceShell  = flag.Bool("x", false, "accepted but has no effect: shell commands are not traced")
	interactive = flag.Bool("interactive", false, "accepted but has no effect: the terminal is not handed over to jobs")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [options] [target...]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

// run is separated from main so deferred cleanup (job.RestoreTTY) always
// executes before the process exits.
func run() int {
	flag.Usage = usage
	args := prependOptionsEnv(os.Args[1:])
	if err := flag.CommandLine.Parse(args); err != nil {
		return place.CodeFatal.ExitStatus()
	}

	opts := engine.Options{
		Jobs:        *jobs,
		KeepGoing:   *keepGoing,
		DisableK:    *disableK,
		TraceShell:  *traceShell,
		Interactive: *interactive,
	}
	switch *order {
	case "dfs", "":
		opts.Order = graph.DepthFirst
	case "random":
		opts.Order = graph.Random
		graph.SeedRandom(*seed)
	default:
		fmt.Fprintf(os.Stderr, "stu: unknown -m order %q\n", *order)
		return place.CodeFatal.ExitStatus()
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}

	rules, perr := parser.ParseFile(ruleFilePath())
	if perr != nil {
		place.Print(perr)
		return perr.Code.ExitStatus()
	}

	rs := ruleset.New()
	var code place.Code
	for _, r := range rules {
		if addErr := rs.Add(r); addErr != nil {
			place.Print(addErr)
			code |= addErr.Code
		}
	}
	if code != 0 && !opts.KeepGoing {
		return code.ExitStatus()
	}

	ctx := engine.New(rs, opts)
	defer job.RestoreTTY()

	targets, terr := targetDeps(flag.Args())
	if terr != nil {
		place.Print(terr)
		return terr.Code.ExitStatus()
	}
	if len(targets) == 0 {
		// No targets given on the command line: build the first target of
		// the first rule, per get_file's target_first convention.
		if d := firstRuleTarget(rules); d != nil {
			targets = append(targets, d)
		}
	}
	for _, d := range targets {
		if rerr := ctx.RequestTarget(d, 0); rerr != nil {
			place.Print(rerr)
			code |= rerr.Code
			if !opts.KeepGoing {
				return code.ExitStatus()
			}
		}
	}

	res := mainloop.Run(ctx, opts.KeepGoing)
	return res.Code.ExitStatus()
}

// firstRuleTarget builds a Plain dependency for the first target of the
// first parsed rule, or nil if no rule was parsed.
func firstRuleTarget(rules []*ruleset.Rule) dep.Dep {
	if len(rules) == 0 || len(rules[0].Targets) == 0 {
		return nil
	}
	t := rules[0].Targets[0]
	if !t.Name.Unparametrized() {
		return nil
	}
	var f flags.Flags
	if t.Transient {
		f = flags.Transient
	}
	return &dep.Plain{Target: t, Flags: f}
}

// ruleFilePath resolves the -f option to the file the parser should read,
// defaulting to "main.stu" exactly as the dialect's get_file describes.
func ruleFilePath() string {
	if *inputFile != "" {
		return *inputFile
	}
	return "main.stu"
}

// targetDeps parses each command-line argument as a target expression and
// normalizes it, the way a rule's own dependency list is normalized before
// being connected.
func targetDeps(args []string) ([]dep.Dep, *place.Error) {
	var out []dep.Dep
	for _, a := range args {
		if a == "" {
			continue
		}
		d, err := parser.ParseTargetArg(a)
		if err != nil {
			return nil, err
		}
		var errs []*place.Error
		normalized := dep.Normalize(d, nil, &errs)
		if len(errs) > 0 {
			return nil, errs[0]
		}
		out = append(out, normalized...)
	}
	return out, nil
}

// prependOptionsEnv splits STU_OPTIONS on whitespace and prepends it to argv,
// so environment-supplied defaults are overridable by explicit flags that
// follow them (the standard library flag package takes the last occurrence
// of a given flag).
func prependOptionsEnv(argv []string) []string {
	env := strings.TrimSpace(os.Getenv("STU_OPTIONS"))
	if env == "" {
		return argv
	}
	return append(strings.Fields(env), argv...)
}
