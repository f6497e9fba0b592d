package llm_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatlog/pkg/llm"
)

var _ = Describe("Payload", func() {
	It("normalizes a single message to one user entry", func() {
		p := llm.SingleMessage("hi")
		Expect(p.IsHistory()).To(BeFalse())
		Expect(p.Empty()).To(BeFalse())
		Expect(p.Messages()).To(Equal([]llm.Message{{Role: "user", Content: "hi"}}))
	})

	It("treats a blank single message as empty", func() {
		Expect(llm.SingleMessage("   ").Empty()).To(BeTrue())
		Expect(llm.SingleMessage("").Messages()).To(BeEmpty())
		Expect(llm.SingleMessage(" ").Messages()).To(BeEmpty())
	})

	It("keeps a history in order and copies it", func() {
		history := []llm.Message{
			{Role: "user", Content: "one"},
			{Role: "assistant", Content: "two"},
			{Role: "user", Content: "three"},
		}
		p := llm.MessageHistory(history)
		Expect(p.IsHistory()).To(BeTrue())

		msgs := p.Messages()
		Expect(msgs).To(Equal(history))

		msgs[0].Content = "mutated"
		Expect(history[0].Content).To(Equal("one"))
	})

	It("treats an empty history as empty", func() {
		Expect(llm.MessageHistory([]llm.Message{}).Empty()).To(BeTrue())
	})
})

var _ = Describe("NewChatRequest", func() {
	It("carries options verbatim and omits unset optional fields", func() {
		req := llm.NewChatRequest("bot-1", []llm.Message{{Role: "user", Content: "hi"}}, llm.Options{
			Temperature: 0.4,
		})

		data, err := json.Marshal(req)
		Expect(err).NotTo(HaveOccurred())

		var fields map[string]any
		Expect(json.Unmarshal(data, &fields)).To(Succeed())
		Expect(fields["chatbotId"]).To(Equal("bot-1"))
		Expect(fields["stream"]).To(Equal(false))
		Expect(fields["temperature"]).To(Equal(0.4))
		Expect(fields).NotTo(HaveKey("model"))
		Expect(fields).NotTo(HaveKey("conversationId"))
	})

	It("includes model and conversation id when set", func() {
		req := llm.NewChatRequest("bot-1", nil, llm.Options{Model: "gpt-4o", ConversationID: "c-9"})
		Expect(req.Model).To(Equal("gpt-4o"))
		Expect(req.ConversationID).To(Equal("c-9"))
	})
})

var _ = Describe("ParseReply", func() {
	It("extracts the text field", func() {
		reply, err := llm.ParseReply(200, []byte(`{"text":"hello there"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Text).To(Equal("hello there"))
		Expect(reply.StatusCode).To(Equal(200))
		Expect(string(reply.Raw)).To(Equal(`{"text":"hello there"}`))
	})

	It("falls back to the compacted body when text is missing", func() {
		reply, err := llm.ParseReply(401, []byte(`{ "message": "Unauthorized" }`))
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Text).To(Equal(`{"message":"Unauthorized"}`))
		Expect(reply.StatusCode).To(Equal(401))
	})

	It("falls back when text is empty", func() {
		reply, err := llm.ParseReply(200, []byte(`{"text":""}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Text).To(Equal(`{"text":""}`))
	})

	It("rejects a non-JSON body", func() {
		_, err := llm.ParseReply(502, []byte("<html>bad gateway</html>"))
		Expect(err).To(MatchError(llm.ErrUnparseable))
	})
})
