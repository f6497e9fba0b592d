package archive_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatlog/pkg/archive"
)

var _ = Describe("SQLite", func() {
	var (
		ctx    context.Context
		writer *archive.SQLite
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		writer, err = archive.NewSQLite(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if writer != nil {
			writer.Close()
		}
	})

	It("creates a database file", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "chatlog.db")
		w, err := archive.NewSQLite(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer w.Close()

		_, err = os.Stat(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	It("stores a batch and reads it back in order", func() {
		batch := []archive.FlushRecord{
			{ChatSessionID: "s1", AssistantID: "a1", UserMessage: "hi", AssistantResponse: "hello", TenantID: "acme", MessageIndex: 1, Source: archive.Source, Timestamp: "t1"},
			{ChatSessionID: "s1", AssistantID: "a1", UserMessage: "bye", AssistantResponse: "later", TenantID: "acme", MessageIndex: 2, Source: archive.Source, Timestamp: "t2"},
		}
		Expect(writer.WriteBatch(ctx, batch)).To(Succeed())

		got, err := writer.Records(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(batch))

		other, err := writer.Records(ctx, "s2")
		Expect(err).NotTo(HaveOccurred())
		Expect(other).To(BeEmpty())

		Expect(writer.WriteBatch(ctx, []archive.FlushRecord{{ChatSessionID: "s2", MessageIndex: 1, Source: archive.Source}})).To(Succeed())
		all, err := writer.Records(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(3))
		Expect(all[2].ChatSessionID).To(Equal("s2"))
	})

	It("accepts an empty batch", func() {
		Expect(writer.WriteBatch(ctx, []archive.FlushRecord{})).To(Succeed())
	})

	It("fails after close", func() {
		Expect(writer.Close()).To(Succeed())
		err := writer.WriteBatch(ctx, []archive.FlushRecord{{ChatSessionID: "s1"}})
		Expect(err).To(HaveOccurred())
		writer = nil
	})
})
