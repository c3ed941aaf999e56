//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Command fastgraph runs the graph server with backends selected by flags,
// falling back to environment variables and in-memory implementations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/yyquiet/fast-graph/assistant"
	"github.com/yyquiet/fast-graph/checkpoint"
	checkpointinmemory "github.com/yyquiet/fast-graph/checkpoint/inmemory"
	"github.com/yyquiet/fast-graph/graph"
	"github.com/yyquiet/fast-graph/graph/simple"
	"github.com/yyquiet/fast-graph/log"
	"github.com/yyquiet/fast-graph/queue"
	queueinmemory "github.com/yyquiet/fast-graph/queue/inmemory"
	queueredis "github.com/yyquiet/fast-graph/queue/redis"
	"github.com/yyquiet/fast-graph/server"
	"github.com/yyquiet/fast-graph/service"
	"github.com/yyquiet/fast-graph/thread"
	threadinmemory "github.com/yyquiet/fast-graph/thread/inmemory"
	threadpostgres "github.com/yyquiet/fast-graph/thread/postgres"
)

func main() {
	var (
		addr        = flag.String("addr", envOr("FASTGRAPH_ADDR", ":8123"), "listen address")
		redisURL    = flag.String("redis-url", os.Getenv("FASTGRAPH_REDIS_URL"), "redis url for the distributed queue backend (empty: in-memory)")
		postgresDSN = flag.String("postgres-dsn", os.Getenv("FASTGRAPH_POSTGRES_DSN"), "postgres dsn for the thread backend (empty: in-memory)")
		logLevel    = flag.String("log-level", envOr("FASTGRAPH_LOG_LEVEL", "info"), "log level: debug, info, warn, error, fatal")
	)
	flag.Parse()
	log.SetLevel(*logLevel)

	ctx := context.Background()

	threads, err := buildThreadManager(ctx, *postgresDSN)
	if err != nil {
		log.Fatalf("init thread manager: %v", err)
	}
	queues, err := buildQueueManager(*redisURL)
	if err != nil {
		log.Fatalf("init queue manager: %v", err)
	}

	var checkpoints checkpoint.Manager = checkpointinmemory.NewManager()
	if err := checkpoints.Init(ctx); err != nil {
		log.Fatalf("init checkpoint manager: %v", err)
	}
	defer checkpoints.Close()

	graphs := graph.NewRegistry()
	assistants := assistant.NewRegistry()
	registerDemoGraph(graphs, assistants)

	runs := service.NewRunService(threads, queues, checkpoints, graphs, assistants)
	statelessRuns := service.NewStatelessRunService(queues, graphs, assistants)
	threadSvc := service.NewThreadService(threads)
	assistantSvc := service.NewAssistantService(assistants)

	srv := server.New(runs, statelessRuns, threadSvc, assistantSvc,
		server.WithAddr(*addr),
		server.WithCORS(),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server failed: %v", err)
		}
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}
}

func buildThreadManager(ctx context.Context, dsn string) (thread.Manager, error) {
	if dsn == "" {
		m := threadinmemory.NewManager()
		return m, m.Setup(ctx)
	}
	m, err := threadpostgres.NewManager(threadpostgres.WithDSN(dsn))
	if err != nil {
		return nil, err
	}
	return m, m.Setup(ctx)
}

func buildQueueManager(redisURL string) (queue.Manager, error) {
	if redisURL == "" {
		return queueinmemory.NewManager(), nil
	}
	return queueredis.NewManager(queueredis.WithURL(redisURL))
}

// registerDemoGraph wires the demo workflow: chat appends to content, hitl
// pauses for approval unless auto_accepted, error fails when the content
// asks for it, normal appends and finishes.
func registerDemoGraph(graphs *graph.Registry, assistants *assistant.Registry) {
	demo := simple.New("agent").
		AddNode("node_chat", func(ctx context.Context, state simple.State) (simple.State, error) {
			content, _ := state["content"].(string)
			return simple.State{"content": content + "[chat]"}, nil
		}).
		AddNode("node_hitl", func(ctx context.Context, state simple.State) (simple.State, error) {
			content, _ := state["content"].(string)
			autoAccepted, _ := state["auto_accepted"].(bool)
			newContent := content + "[hitl]"
			if !autoAccepted {
				approval, resumed := simple.ResumeValue(state)
				if !resumed {
					return nil, simple.NewInterrupt(map[string]any{
						"message": "approval required",
						"content": content,
					})
				}
				if s, ok := approval.(string); ok {
					newContent += s
				}
			}
			return simple.State{"content": newContent}, nil
		}).
		AddNode("node_error", func(ctx context.Context, state simple.State) (simple.State, error) {
			content, _ := state["content"].(string)
			if strings.Contains(content, "error") {
				return nil, fmt.Errorf("error in content")
			}
			return simple.State{"content": content + "[error]"}, nil
		}).
		AddNode("node_normal", func(ctx context.Context, state simple.State) (simple.State, error) {
			content, _ := state["content"].(string)
			return simple.State{"content": content + "[normal]"}, nil
		})

	graphs.Register("agent", demo)
	assistants.Register(&assistant.Assistant{
		AssistantID: "agent",
		GraphID:     "agent",
		Name:        "agent",
		Description: "demo workflow with interrupt, error and normal nodes",
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
