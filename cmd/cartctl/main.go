// cartctl is a CLI tool for exercising the sidecart proxy.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	cartctl add -proxy URL -variant ID [-qty N]
//	cartctl get -proxy URL
//	cartctl qty -proxy URL -line <line-id> -delta N
//	cartctl suggest -proxy URL
//
// Examples:
//
//	cartctl add -proxy http://localhost:8080 -variant gid://shopify/ProductVariant/123
//	cartctl qty -proxy http://localhost:8080 -line gid://shopify/CartLine/abc -delta -1
//	cartctl suggest -proxy http://localhost:8080 -q
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	proxyURL string
	quiet    bool
	noColor  bool
	verbose  bool
)

// Identifies this tool to the widget client gate.
const clientHeaderValue = `id="cartctl", version="1.0.0"`

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen = "", "", ""
	colorYellow, colorCyan, colorGray, colorBold = "", "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "add":
		runAdd(args)
	case "get":
		runGet(args)
	case "qty":
		runQty(args)
	case "suggest":
		runSuggest(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `cartctl - sidecart proxy test tool

Usage:
  cartctl <command> [options]

Commands:
  add      Add a product variant to the cart
  get      Fetch the authoritative cart snapshot
  qty      Adjust a cart line quantity by a signed delta
  suggest  Show current product suggestions

Examples:
  # Add a variant (cart is created on first add)
  cartctl add -proxy http://localhost:8080 -variant gid://shopify/ProductVariant/123

  # Inspect the cart
  cartctl get -proxy http://localhost:8080

  # Decrement a line; reaching zero removes it
  cartctl qty -proxy http://localhost:8080 -line <line-id> -delta -1

Run 'cartctl <command> -h' for command-specific options.
`)
}

// =============================================================================
// ADD COMMAND
// =============================================================================

func runAdd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	fs.StringVar(&proxyURL, "proxy", "http://localhost:8080", "sidecart proxy base URL")
	var variantID string
	var quantity int
	fs.StringVar(&variantID, "variant", "", "Merchandise (variant) ID (required)")
	fs.IntVar(&quantity, "qty", 1, "Quantity to add")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output item count")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartctl add -variant ID [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}
	if variantID == "" {
		fs.Usage()
		os.Exit(1)
	}

	reqBody := map[string]interface{}{
		"merchandise_id": variantID,
		"quantity":       quantity,
	}

	resp, err := doRequest("POST", "/cart/lines", reqBody)
	if err != nil {
		fatal("Failed to add to cart: %v", err)
	}

	snapshot, _ := resp["snapshot"].(map[string]interface{})
	if snapshot == nil {
		snapshot = resp
	}

	if quiet {
		fmt.Println(intField(snapshot, "item_count"))
		return
	}
	printSuccess("Added to cart")
	printSnapshot(snapshot)
}

// =============================================================================
// GET COMMAND
// =============================================================================

func runGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	fs.StringVar(&proxyURL, "proxy", "http://localhost:8080", "sidecart proxy base URL")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output item count")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartctl get [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}

	resp, err := doRequest("GET", "/cart", nil)
	if err != nil {
		fatal("Failed to fetch cart: %v", err)
	}

	if quiet {
		fmt.Println(intField(resp, "item_count"))
		return
	}
	printSnapshot(resp)
}

// =============================================================================
// QTY COMMAND
// =============================================================================

func runQty(args []string) {
	fs := flag.NewFlagSet("qty", flag.ExitOnError)
	fs.StringVar(&proxyURL, "proxy", "http://localhost:8080", "sidecart proxy base URL")
	var lineID string
	var delta int
	fs.StringVar(&lineID, "line", "", "Cart line ID (required)")
	fs.IntVar(&delta, "delta", 0, "Signed quantity change (required, non-zero)")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output item count")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartctl qty -line <line-id> -delta N [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}
	if lineID == "" || delta == 0 {
		fs.Usage()
		os.Exit(1)
	}

	reqBody := map[string]interface{}{"delta": delta}

	resp, err := doRequest("PATCH", "/cart/lines/"+url.PathEscape(lineID), reqBody)
	if err != nil {
		fatal("Failed to update quantity: %v", err)
	}

	if quiet {
		fmt.Println(intField(resp, "item_count"))
		return
	}
	printSuccess("Quantity updated")
	printSnapshot(resp)
}

// =============================================================================
// SUGGEST COMMAND
// =============================================================================

func runSuggest(args []string) {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	fs.StringVar(&proxyURL, "proxy", "http://localhost:8080", "sidecart proxy base URL")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - one product ID per line")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartctl suggest [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}

	resp, err := doRequest("GET", "/suggestions", nil)
	if err != nil {
		fatal("Failed to fetch suggestions: %v", err)
	}

	suggestions, _ := resp["suggestions"].([]interface{})
	if quiet {
		for _, s := range suggestions {
			if m, ok := s.(map[string]interface{}); ok {
				fmt.Println(stringField(m, "product_id"))
			}
		}
		return
	}

	if len(suggestions) == 0 {
		printInfo("No suggestions (cart may be empty)")
		return
	}
	for _, s := range suggestions {
		m, ok := s.(map[string]interface{})
		if !ok {
			continue
		}
		fmt.Printf("  %s%s%s  %s  %s%s%s\n",
			colorBold, stringField(m, "title"), colorReset,
			formatCents(m["min_price"]),
			colorGray, stringField(m, "category"), colorReset)
	}
}

// =============================================================================
// HTTP
// =============================================================================

func doRequest(method, path string, body map[string]interface{}) (map[string]interface{}, error) {
	var reqBody io.Reader
	var reqJSON []byte
	if body != nil {
		var err error
		reqJSON, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	reqURL := proxyURL + path
	req, err := http.NewRequest(method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cart-Client", clientHeaderValue)

	if verbose {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if verbose {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return result, nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

// printSnapshot renders a cart snapshot: notice, lines, subtotal, progress.
func printSnapshot(snap map[string]interface{}) {
	if notice, ok := snap["notice"].(map[string]interface{}); ok {
		printWarning("%s", stringField(notice, "message"))
	}

	if empty, _ := snap["empty"].(bool); empty {
		printInfo("Cart is empty")
		return
	}

	lines, _ := snap["lines"].([]interface{})
	for _, l := range lines {
		m, ok := l.(map[string]interface{})
		if !ok {
			continue
		}
		fmt.Printf("  %s%dx%s %s%s%s  %s\n",
			colorCyan, intField(m, "quantity"), colorReset,
			colorBold, stringField(m, "product_title"), colorReset,
			formatCents(m["line_total"]))
	}

	fmt.Printf("  Subtotal: %s%s%s (%d items)\n",
		colorBold, formatCents(snap["subtotal"]), colorReset, intField(snap, "item_count"))

	if progress, ok := snap["progress"].(map[string]interface{}); ok {
		if msg := stringField(progress, "message"); msg != "" {
			pct, _ := progress["percent"].(float64)
			fmt.Printf("  %s[%3.0f%%]%s %s\n", colorGray, pct, colorReset, msg)
		}
	}

	if checkout := stringField(snap, "checkout_url"); checkout != "" {
		printInfo("Checkout: %s", checkout)
	}
}

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}

	output := pretty.String()
	lines := strings.Split(output, "\n")
	if len(lines) > 40 {
		lines = append(lines[:35], fmt.Sprintf("%s  %s(%d more lines)%s", prefix, colorGray, len(lines)-35, colorReset))
		output = strings.Join(lines, "\n")
	}
	fmt.Println(output)
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]interface{}, key string) int {
	if f, ok := m[key].(float64); ok {
		return int(f)
	}
	return 0
}

func formatCents(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("$%.2f", val/100)
	case int:
		return fmt.Sprintf("$%.2f", float64(val)/100)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
