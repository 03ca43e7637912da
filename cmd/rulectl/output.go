package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/iota-uz/provisioning-sdk/pkg/notify"
)

func writeJSONLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

// stderrNotifier prints notifications as "[variant] title: message".
func stderrNotifier(w io.Writer) notify.Notifier {
	return notify.NotifierFunc(func(_ context.Context, n notify.Notification) {
		fmt.Fprintf(w, "[%s] %s: %s\n", n.Variant, n.Title, n.Message)
	})
}
