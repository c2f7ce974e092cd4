// Command agentd is the engine's daemon entrypoint: it owns one
// workspace's Thread Store and Agent Loop for the lifetime of the
// process and exposes the Thread Event Stream over a websocket.
// Grounded on the teacher's cmd/ricochet main.go runServerMode, trimmed
// to the server-mode path only (the teacher's stdio/MCP modes served a
// VSCode extension sidecar and an unbuilt MCP surface that have no home
// in this engine).
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aegisline/coreengine/internal/agent"
	"github.com/aegisline/coreengine/internal/browser"
	"github.com/aegisline/coreengine/internal/checkpoints"
	"github.com/aegisline/coreengine/internal/codegraph"
	"github.com/aegisline/coreengine/internal/config"
	ctxmgr "github.com/aegisline/coreengine/internal/context"
	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/paths"
	"github.com/aegisline/coreengine/internal/qc"
	"github.com/aegisline/coreengine/internal/rules"
	"github.com/aegisline/coreengine/internal/safeguard"
	"github.com/aegisline/coreengine/internal/server"
	"github.com/aegisline/coreengine/internal/tools"
	"github.com/aegisline/coreengine/internal/workspace"

	assemblerpkg "github.com/aegisline/coreengine/internal/assembler"
)

// qcAdapter satisfies agent.QCChecker over qc.Manager's whole-project
// RunCheck, which has no notion of a touched-paths filter — it always
// re-verifies the project as a unit.
type qcAdapter struct{ mgr *qc.Manager }

func (a qcAdapter) Check(ctx context.Context, _ []string) (string, bool, error) {
	res, err := a.mgr.RunCheck(ctx)
	if err != nil {
		return "", false, err
	}
	if res.Success {
		return "", false, nil
	}
	return res.Output, true, nil
}

func main() {
	log.SetPrefix("[agentd] ")
	log.SetOutput(os.Stderr)

	workspaceRoot := flag.String("workspace", ".", "workspace root directory")
	port := flag.String("port", "5555", "websocket listen port")
	model := flag.String("model", "claude-sonnet-4-5-20250929", "default model")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		cancel()
	}()

	settingsStore, err := config.NewStore()
	if err != nil {
		log.Fatalf("failed to initialize settings store: %v", err)
	}
	settings := settingsStore.Get()

	apiKey := settings.Provider.APIKey
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	provider, err := agent.NewAnthropicProvider(agent.AnthropicConfig{APIKey: apiKey, Model: *model})
	if err != nil {
		log.Fatalf("failed to build provider: %v", err)
	}

	gw := workspace.New(*workspaceRoot)
	if sg, err := safeguard.NewManager(*workspaceRoot); err != nil {
		log.Printf("safeguard manager unavailable, command/file policy disabled: %v", err)
	} else {
		gw.Safeguard = sg
	}
	gw.Checkpoints = checkpoints.NewCheckpointService(paths.GetWorkspaceHash(*workspaceRoot), *workspaceRoot, paths.GetGlobalDir())
	gw.Codegraph = codegraph.NewService()
	gw.Browser = browser.NewBrowserManager("")

	registry := tools.NewRegistry()
	workspace.RegisterTools(registry, gw)

	dispatcher := tools.NewDispatcher(registry, settings.AutoApproval.ToToolSettings(), nil)
	cm := ctxmgr.NewManager(ctxmgr.DefaultSettings(128_000), nil)
	asm := assemblerpkg.New(*workspaceRoot, rules.NewManager(*workspaceRoot))
	qcChecker := qcAdapter{mgr: qc.NewManager(*workspaceRoot)}

	store := engine.NewStore(gw)
	persister := server.NewPersister(*workspaceRoot)
	if doc, err := persister.Load(); err == nil {
		for _, t := range doc.Threads {
			store.RestoreThread(t)
		}
		log.Printf("restored %d thread(s) from %s", len(doc.Threads), *workspaceRoot)
	}

	hub := server.NewHub()
	go hub.Run(ctx)
	store.Subscribe(hub)

	loop := agent.NewLoop(store, provider, dispatcher, registry, cm, qcChecker, asm, agent.Settings{
		MaxToolLoops:         20,
		MaxContextTokens:     128_000,
		OutputTokensEstimate: 4096,
		EnableAutoFix:        true,
		Model:                *model,
		Parameters:           agent.Parameters{Temperature: 1, MaxTokens: 4096},
	})

	handler := server.NewHandler(ctx, store, loop, hub)

	go periodicPersist(ctx, store, persister)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade error: %v", err)
			return
		}
		hub.Register(conn)
		writer := &connWriter{conn: conn}

		defer hub.Unregister(conn)
		for {
			var msg server.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			handler.HandleMessage(msg, writer)
		}
	})

	httpServer := &http.Server{Addr: ":" + *port}
	go func() {
		log.Printf("listening on :%s (workspace=%s)", *port, *workspaceRoot)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %v", err)
		}
	}()

	<-ctx.Done()
	if err := persister.Save(server.Snapshot(store)); err != nil {
		log.Printf("final save failed: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// connWriter adapts one websocket connection to server.ResponseWriter.
type connWriter struct {
	conn *websocket.Conn
}

func (w *connWriter) Send(msg server.Message) error {
	return w.conn.WriteJSON(msg)
}

// periodicPersist saves the Store's full state every 30s so a crash
// between explicit checkpoints loses at most that much history.
func periodicPersist(ctx context.Context, store *engine.Store, p *server.Persister) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := p.Save(server.Snapshot(store)); err != nil {
				log.Printf("periodic save failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
