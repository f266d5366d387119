package onboard_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	onboard "github.com/finlayer/onboard"
	"github.com/finlayer/onboard/pkg/adapters/memory"
	"github.com/finlayer/onboard/pkg/flow"
	"github.com/finlayer/onboard/pkg/persistence/middleware"
)

// Example walks a new-business session from the first step through
// submission.
func Example() {
	ctx := context.Background()

	w := onboard.New(flow.NewBusiness())
	defer w.Close()

	// Advancing with nothing filled in is rejected and names the fields.
	res := w.Advance(ctx)
	fmt.Println("moved:", res.Moved)

	w.SetAnswers(map[string]any{
		"businessDetails.name":    "Acme Exports",
		"businessDetails.country": "IN",
		"businessDetails.state":   "Karnataka",
		"taxProfile.registered":   true,
		"taxProfile.gstin":        "29ABCDE1234F1Z5",
		"taxProfile.pan":          "ABCDE1234F",
		"adminEmail":              "ops@acme.example",
		"termsAccepted":           true,
	})

	for w.Advance(ctx).Moved {
	}
	fmt.Println("step:", w.CurrentStep(), "of", w.Flow().Len())

	if err := w.Submit(ctx); err == nil {
		fmt.Println("submitted")
	}

	// Output:
	// moved: false
	// step: 4 of 4
	// submitted
}

// ExampleWizard_Restore resumes a session from a durable store.
func ExampleWizard_Restore() {
	ctx := context.Background()

	w := onboard.New(flow.ExistingBusiness())
	defer w.Close()

	restored, _ := w.Restore(ctx)
	fmt.Println("restored:", restored)

	// Output:
	// restored: false
}

// ExampleWithLocalStore encrypts the session's local records at rest by
// wrapping the store with the encryption middleware.
func ExampleWithLocalStore() {
	key := bytes.Repeat([]byte{0x42}, 32)
	encrypt := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
	underlying := memory.NewLocalStore()

	w := onboard.New(flow.NewBusiness(), onboard.WithLocalStore(encrypt(underlying)))
	w.SetAnswer("businessDetails.name", "Acme Exports")
	w.Close()

	raw, _ := underlying.Get("onboard:answers")
	fmt.Println("plaintext on disk:", strings.Contains(raw, "Acme"))

	// Output:
	// plaintext on disk: false
}
