package pushcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatlog/pkg/archive"
)

var _ = Describe("Push Command", func() {
	var (
		ctx       context.Context
		tmpDir    string
		localPath string
		cfgPath   string
		mu        sync.Mutex
		batches   [][]map[string]any
		server    *httptest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		localPath = filepath.Join(tmpDir, "local.db")
		batches = nil

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload struct {
				Records []struct {
					Fields map[string]any `json:"fields"`
				} `json:"records"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			batch := make([]map[string]any, 0, len(payload.Records))
			for _, rec := range payload.Records {
				batch = append(batch, rec.Fields)
			}
			mu.Lock()
			batches = append(batches, batch)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"records":[]}`))
		}))

		cfgPath = filepath.Join(tmpDir, "chatlog.toml")
		Expect(os.WriteFile(cfgPath, []byte(`
airtable_url = "`+server.URL+`"
airtable_api_key = "key"
airtable_base_id = "app123"
airtable_table_name = "Chat Logs"
`), 0o600)).To(Succeed())
	})

	AfterEach(func() {
		server.Close()
	})

	seed := func(records ...archive.FlushRecord) {
		local, err := archive.NewSQLite(ctx, localPath)
		Expect(err).NotTo(HaveOccurred())
		defer local.Close()
		Expect(local.WriteBatch(ctx, records)).To(Succeed())
	}

	record := func(session string, idx int) archive.FlushRecord {
		return archive.FlushRecord{
			ChatSessionID: session, AssistantID: "a1", UserMessage: "u", AssistantResponse: "b",
			TenantID: "acme", MessageIndex: idx, Source: archive.Source, Timestamp: "t",
		}
	}

	execute := func(args ...string) (string, error) {
		out := &bytes.Buffer{}
		cmd := NewPushCmd()
		cmd.SetOut(out)
		cmd.SetArgs(append([]string{"--config", cfgPath, "--env-file", filepath.Join(tmpDir, "missing.env"), "--sqlite", localPath}, args...))
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	It("pushes local records in batches", func() {
		seed(record("s1", 1), record("s1", 2), record("s2", 1))

		out, err := execute("--batch-size", "2")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Pushed 3 records"))

		Expect(batches).To(HaveLen(2))
		Expect(batches[0]).To(HaveLen(2))
		Expect(batches[1]).To(HaveLen(1))
		Expect(batches[0][1]["Message_Index"]).To(Equal(float64(2)))
		Expect(batches[1][0]["Chat_Session_ID"]).To(Equal("s2"))
	})

	It("pushes only the named sessions", func() {
		seed(record("s1", 1), record("s2", 1))

		_, err := execute("s2")
		Expect(err).NotTo(HaveOccurred())
		Expect(batches).To(HaveLen(1))
		Expect(batches[0][0]["Chat_Session_ID"]).To(Equal("s2"))
	})

	It("reports when there is nothing to push", func() {
		out, err := execute()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("No local records to push."))
		Expect(batches).To(BeEmpty())
	})

	It("fails on a remote error", func() {
		seed(record("s1", 1))
		server.Close()

		_, err := execute()
		Expect(err).To(MatchError(ContainSubstring("push failed on records 0-0")))
	})

	It("rejects a non-positive batch size", func() {
		_, err := pushBatches(ctx, archive.NewMemory(), []archive.FlushRecord{record("s1", 1)}, 0)
		Expect(err).To(HaveOccurred())
	})
})
