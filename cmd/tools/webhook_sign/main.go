package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/noah-isme/academy-payments/internal/config"
	"github.com/noah-isme/academy-payments/internal/payment"
)

// webhook_sign prints the X-Razorpay-Signature for a payload so webhooks can be replayed locally.
// Exit code 0 = ok, 1 = invalid input, 2 = other error.
func main() {
	var (
		file   = flag.String("file", "-", "payload file to sign; - reads stdin")
		secret = flag.String("secret", "", "webhook secret; defaults to RAZORPAY_WEBHOOK_SECRET")
		url    = flag.String("url", "", "when set, print a curl command posting the payload to this URL")
	)
	flag.Parse()

	body, err := readPayload(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "webhook_sign error: %v\n", err)
		os.Exit(2)
	}
	if !json.Valid(body) {
		fmt.Fprintln(os.Stderr, "webhook_sign: payload is not valid JSON")
		os.Exit(1)
	}

	key := strings.TrimSpace(*secret)
	if key == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "webhook_sign error: %v\n", err)
			os.Exit(2)
		}
		key = cfg.RazorpayWebhookSecret
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "webhook_sign: no secret given and RAZORPAY_WEBHOOK_SECRET is unset")
		os.Exit(1)
	}

	signature := payment.Sign(key, body)
	if *url == "" {
		fmt.Println(signature)
		return
	}
	fmt.Printf("curl -sS -X POST %q -H 'Content-Type: application/json' -H '%s: %s' --data-binary %s\n",
		*url, payment.SignatureHeader, signature, shellQuote(string(body)))
}

func readPayload(path string) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	if path == "" || path == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("payload is empty")
	}
	return body, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
