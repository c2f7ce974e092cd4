package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/tools"
)

// browserArgs covers url/selector/text, the union of every browser
// tool's payload, grounded on the teacher's browser_tools.go quartet.
type browserArgs struct {
	URL      string `json:"url"`
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

func (g *Gateway) requireBrowser() error {
	if g.Browser == nil {
		return fmt.Errorf("browser control is not enabled for this workspace")
	}
	return nil
}

// BrowserOpen navigates the managed browser to a URL.
func (g *Gateway) BrowserOpen(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	if err := g.requireBrowser(); err != nil {
		return tools.Result{}, err
	}
	var payload browserArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := g.Browser.Navigate(ctx, payload.URL); err != nil {
		return tools.Result{}, fmt.Errorf("open %s: %w", payload.URL, err)
	}
	g.audit("browser_open", payload.URL, true, "", 0)
	return tools.Result{Content: fmt.Sprintf("opened %s", payload.URL), Type: engine.ToolSuccess}, nil
}

// BrowserScreenshot captures the page and saves it under
// .aegis/screenshots in the workspace root, mirroring the teacher's
// .aegis/screenshots convention.
func (g *Gateway) BrowserScreenshot(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	if err := g.requireBrowser(); err != nil {
		return tools.Result{}, err
	}
	var payload browserArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}
	data, err := g.Browser.Screenshot(ctx, payload.URL)
	if err != nil {
		return tools.Result{}, fmt.Errorf("screenshot %s: %w", payload.URL, err)
	}

	dir := filepath.Join(g.Root, ".aegis", "screenshots")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return tools.Result{}, fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("screenshot_%d.png", time.Now().Unix()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return tools.Result{}, fmt.Errorf("save screenshot: %w", err)
	}
	g.audit("browser_screenshot", path, true, payload.URL, len(data))
	return tools.Result{Content: fmt.Sprintf("screenshot saved to %s", path), Type: engine.ToolSuccess}, nil
}

// BrowserClick clicks an element matching selector.
func (g *Gateway) BrowserClick(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	if err := g.requireBrowser(); err != nil {
		return tools.Result{}, err
	}
	var payload browserArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := g.Browser.Click(ctx, payload.URL, payload.Selector); err != nil {
		return tools.Result{}, fmt.Errorf("click %s on %s: %w", payload.Selector, payload.URL, err)
	}
	g.audit("browser_click", payload.Selector, true, payload.URL, 0)
	return tools.Result{Content: fmt.Sprintf("clicked %s on %s", payload.Selector, payload.URL), Type: engine.ToolSuccess}, nil
}

// BrowserType types text into an element matching selector.
func (g *Gateway) BrowserType(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	if err := g.requireBrowser(); err != nil {
		return tools.Result{}, err
	}
	var payload browserArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := g.Browser.Type(ctx, payload.URL, payload.Selector, payload.Text); err != nil {
		return tools.Result{}, fmt.Errorf("type into %s on %s: %w", payload.Selector, payload.URL, err)
	}
	g.audit("browser_type", payload.Selector, true, payload.URL, len(payload.Text))
	return tools.Result{Content: fmt.Sprintf("typed text into %s on %s", payload.Selector, payload.URL), Type: engine.ToolSuccess}, nil
}
