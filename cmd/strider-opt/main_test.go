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

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut strings.Builder
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestListKernels(t *testing.T) {
	out, _, err := execute(t, "--list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, k := range kernels {
		if !strings.Contains(out, k.name) {
			t.Errorf("listing does not mention %s", k.name)
		}
	}
}

func TestRunAllKernels(t *testing.T) {
	out, errOut, err := execute(t)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, errOut)
	}
	for _, k := range kernels {
		if !strings.Contains(out, "----- "+k.name+" -----") {
			t.Errorf("output does not contain the result of %s", k.name)
		}
	}
	if strings.Contains(errOut, "warning") {
		t.Errorf("demo kernels produced warnings:\n%s", errOut)
	}
}

func TestRunSingleKernel(t *testing.T) {
	out, _, err := execute(t, "--dump-ir", "vector_add")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, want := range []string{"after convert", "after analyze", "after lower", "----- vector_add -----"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q", want)
		}
	}
}

func TestUnknownKernel(t *testing.T) {
	_, _, err := execute(t, "no_such_kernel")
	if err == nil || !strings.Contains(err.Error(), "unknown kernel") {
		t.Errorf("got error %v but want an unknown kernel failure", err)
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strider.yaml")
	if err := os.WriteFile(path, []byte("stop_after: convert\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err := execute(t, "--config", path, "window_walk")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "get_state") {
		t.Errorf("pipeline did not stop after the conversion:\n%s", out)
	}
}
