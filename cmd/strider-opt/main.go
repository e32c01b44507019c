// Copyright 2025 Google LLC
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

// strider-opt runs the pointer structuring pipeline on built-in
// demonstration kernels and prints the resulting IR.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"github.com/tile-org/strider/pipeline"
)

var version = "0.1.0"

var (
	dumpIR      bool
	stopAfter   string
	werror      bool
	configPath  string
	listKernels bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "strider-opt: %v\n", err)
		return 1
	}
	return 0
}

// fileConfig mirrors the command line flags for --config files.
type fileConfig struct {
	DumpIR    bool   `yaml:"dump_ir"`
	StopAfter string `yaml:"stop_after"`
	Werror    bool   `yaml:"werror"`
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "strider-opt [kernel...]",
		Short: "strider-opt structures the pointer arithmetic of demo kernels",
		Long: `strider-opt runs the pointer structuring pipeline on built-in
demonstration kernels: the structural type conversion, the pointer
state analysis and the access lowering. Without arguments it
processes every kernel.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listKernels {
				for _, k := range kernels {
					fmt.Fprintf(out, "%-14s %s\n", k.name, k.about)
				}
				return nil
			}
			if err := applyConfig(cmd); err != nil {
				return err
			}
			selected, err := selectKernels(args)
			if err != nil {
				return err
			}
			for _, k := range selected {
				if err := processKernel(k, out, errOut); err != nil {
					return fmt.Errorf("%s: %w", k.name, err)
				}
			}
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	// Environment variables provide the defaults so batch runs can set
	// them once.
	rootCmd.Flags().BoolVar(&dumpIR, "dump-ir", env.Bool("STRIDER_DUMP_IR"), "Dump the IR after each phase")
	rootCmd.Flags().StringVar(&stopAfter, "stop-after", env.Str("STRIDER_STOP_AFTER", ""), "Stop after the named phase (convert, analyze, lower)")
	rootCmd.Flags().BoolVar(&werror, "werror", env.Bool("STRIDER_WERROR"), "Treat analysis warnings as errors")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Read flag defaults from a YAML file")
	rootCmd.Flags().BoolVar(&listKernels, "list", false, "List the built-in kernels")

	return rootCmd
}

// applyConfig loads the YAML config file, if any. Flags set on the
// command line win over the file.
func applyConfig(cmd *cobra.Command) error {
	if configPath == "" {
		return nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}
	cfg := fileConfig{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("%s: %w", configPath, err)
	}
	if !cmd.Flags().Changed("dump-ir") && cfg.DumpIR {
		dumpIR = true
	}
	if !cmd.Flags().Changed("stop-after") && cfg.StopAfter != "" {
		stopAfter = cfg.StopAfter
	}
	if !cmd.Flags().Changed("werror") && cfg.Werror {
		werror = true
	}
	return nil
}

func selectKernels(names []string) ([]kernel, error) {
	if len(names) == 0 {
		return kernels, nil
	}
	selected := make([]kernel, 0, len(names))
	for _, name := range names {
		k, ok := kernelByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown kernel %q", name)
		}
		selected = append(selected, k)
	}
	return selected, nil
}

func processKernel(k kernel, out, errOut io.Writer) error {
	fn := k.build()
	opts := []pipeline.Option{}
	if dumpIR {
		opts = append(opts, pipeline.WithDump(out))
	}
	if stopAfter != "" {
		opts = append(opts, pipeline.WithStopAfter(stopAfter))
	}
	if werror {
		opts = append(opts, pipeline.WithWarningsAsErrors())
	}
	res, err := pipeline.Run(fn, opts...)
	if res != nil {
		for _, w := range res.Warnings {
			fmt.Fprintf(errOut, "strider-opt: warning: %v\n", w)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "// ----- %s -----\n%s\n", k.name, fn)
	return nil
}
