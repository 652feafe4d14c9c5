package chat

import (
	"strings"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
)

func FuzzLatestReply(f *testing.F) {
	f.Add([]byte("seed"))
	f.Add([]byte{0x03, 'a', ' ', 'b'})

	f.Fuzz(func(t *testing.T, data []byte) {
		var texts []string
		if err := fuzz.NewConsumer(data).CreateSlice(&texts); err != nil {
			return
		}

		got, ok := LatestReply(texts)
		if !ok {
			for _, s := range texts {
				if strings.TrimSpace(s) != "" {
					t.Fatalf("no reply reported but %q is non-blank", s)
				}
			}
			return
		}
		if got == "" || got != strings.TrimSpace(got) {
			t.Fatalf("reply %q is blank or untrimmed", got)
		}
		// Nothing newer than the returned reply may be non-blank.
		for i := len(texts) - 1; i >= 0; i-- {
			if strings.TrimSpace(texts[i]) == got {
				break
			}
			if strings.TrimSpace(texts[i]) != "" {
				t.Fatalf("newer non-blank turn %q skipped", texts[i])
			}
		}
	})
}
