// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/ddway2/magnum/pkg/plugin"
)

const importerTag = plugin.InterfaceTag("magnum.importer/1.0")

// buildEchoImporter compiles the example plugin into dir and writes its
// manifest alongside, producing a real plugin directory entry.
func buildEchoImporter(dir string) error {
	pluginDir := filepath.Join(dir, "echo-importer")
	if err := os.MkdirAll(pluginDir, 0o750); err != nil {
		return err
	}

	repoRoot, err := filepath.Abs(filepath.Join("..", ".."))
	if err != nil {
		return err
	}

	execPath := filepath.Join(pluginDir, "echo-importer")
	cmd := exec.Command("go", "build", "-o", execPath, "./plugins/echo-importer")
	cmd.Dir = repoRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		return &buildError{output: string(out), err: err}
	}

	manifest := "name: echo-importer\nversion: 1.0.0\ninterface: magnum.importer/1.0\nexecutable: echo-importer\n"
	return os.WriteFile(filepath.Join(pluginDir, "plugin.yaml"), []byte(manifest), 0o600)
}

type buildError struct {
	output string
	err    error
}

func (e *buildError) Error() string {
	return "building echo-importer: " + e.err.Error() + "\n" + e.output
}

var _ = Describe("Dynamic plugin lifecycle", func() {
	var (
		ctx context.Context
		dir string
		mgr *plugin.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		Expect(buildEchoImporter(dir)).To(Succeed())

		var err error
		mgr, err = plugin.New(importerTag, dir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(mgr.Close(ctx)).To(Succeed())
	})

	It("discovers the plugin as unloaded", func() {
		Expect(mgr.Names()).To(ContainElement("echo-importer"))
		Expect(mgr.State("echo-importer")).To(Equal(plugin.StateUnloaded))
	})

	It("loads and unloads a real subprocess", func() {
		state, err := mgr.Load(ctx, "echo-importer")
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(Equal(plugin.StateLoaded))

		state, err = mgr.Unload(ctx, "echo-importer")
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(Equal(plugin.StateUnloaded))
	})

	It("round-trips an import through the plugin process", func() {
		inst, err := mgr.Instantiate(ctx, "echo-importer")
		Expect(err).NotTo(HaveOccurred())

		remote, ok := inst.Impl().(*plugin.Remote)
		Expect(ok).To(BeTrue())

		out, err := remote.Invoke("import", []byte("mesh data"))
		Expect(err).NotTo(HaveOccurred())

		var result struct {
			Size int    `json:"size"`
			Data string `json:"data"`
		}
		Expect(json.Unmarshal(out, &result)).To(Succeed())
		Expect(result.Size).To(Equal(len("mesh data")))
		Expect(result.Data).To(Equal("mesh data"))

		Expect(inst.Close()).To(Succeed())
		_, err = mgr.Unload(ctx, "echo-importer")
		Expect(err).NotTo(HaveOccurred())
	})

	It("refuses to unload while an instance is live", func() {
		inst, err := mgr.Instantiate(ctx, "echo-importer")
		Expect(err).NotTo(HaveOccurred())

		_, err = mgr.Unload(ctx, "echo-importer")
		Expect(err).To(HaveOccurred())

		Expect(inst.Close()).To(Succeed())
		_, err = mgr.Unload(ctx, "echo-importer")
		Expect(err).NotTo(HaveOccurred())
	})
})
