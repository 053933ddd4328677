package event_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/svn-action/internal/event"
)

var _ = Describe("ParseWorkflowDispatchEvent", func() {
	const sample = `{
		"ref": "refs/heads/main",
		"workflow": ".github/workflows/nightly.yml",
		"repository": {
			"name": "svn-mirror",
			"owner": {"login": "rancher"}
		},
		"inputs": {
			"url": "https://svn.example.com/repo/trunk",
			"force_build": true,
			"composition_id": 42
		}
	}`

	It("parses repository details and typed inputs", func() {
		payload, err := event.ParseWorkflowDispatchEvent(strings.NewReader(sample))
		Expect(err).NotTo(HaveOccurred())

		Expect(payload.Ref).To(Equal("refs/heads/main"))
		Expect(payload.Workflow).To(Equal(".github/workflows/nightly.yml"))
		Expect(payload.Repository.Owner).To(Equal("rancher"))
		Expect(payload.Repository.Name).To(Equal("svn-mirror"))

		Expect(payload.Inputs).To(HaveKeyWithValue("url", "https://svn.example.com/repo/trunk"))
		Expect(payload.Inputs).To(HaveKeyWithValue("force_build", true))
		Expect(payload.Inputs).To(HaveKeyWithValue("composition_id", json.Number("42")))
	})

	It("returns empty inputs for events without them", func() {
		payload, err := event.ParseWorkflowDispatchEvent(strings.NewReader(`{"action": "opened", "inputs": null}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.Inputs).To(BeEmpty())
	})

	It("rejects malformed payloads", func() {
		_, err := event.ParseWorkflowDispatchEvent(strings.NewReader(`{"inputs": [`))
		Expect(err).To(HaveOccurred())

		_, err = event.ParseWorkflowDispatchEvent(strings.NewReader(`{"inputs": ["a"]}`))
		Expect(err).To(MatchError(ContainSubstring("decode workflow_dispatch inputs")))
	})

	It("reads the event from disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "event.json")
		Expect(os.WriteFile(path, []byte(sample), 0o600)).To(Succeed())

		payload, err := event.ParseWorkflowDispatchEventFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.Inputs).To(HaveLen(3))

		_, err = event.ParseWorkflowDispatchEventFile(filepath.Join(GinkgoT().TempDir(), "missing.json"))
		Expect(err).To(MatchError(ContainSubstring("open event file")))
	})
})
