//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"strings"
	"syscall/js"

	"nutriguide/internal/adapter/dataset"
	"nutriguide/internal/adapter/embedding"
	"nutriguide/internal/adapter/memstore"
	"nutriguide/internal/adapter/retriever"
	"nutriguide/internal/domain"
	"nutriguide/internal/usecase"
)

const defaultThreshold = 0.75

var assistant *usecase.Assistant

func init() {
	if err := reset(defaultThreshold); err != nil {
		panic(err)
	}
}

// reset builds a fresh, empty assistant. There is no generator in the
// browser; callers get the routed prompt and send it wherever they like.
func reset(threshold float64) error {
	emb := embedding.NewHashEmbedder(embedding.DefaultDimension)
	idx, err := memstore.NewMemoryIndex(emb.Dimension(), domain.MetricCosine)
	if err != nil {
		return err
	}
	ret, err := retriever.NewSemanticRetriever(emb, idx, 1)
	if err != nil {
		return err
	}
	composer, err := usecase.NewComposer(nil)
	if err != nil {
		return err
	}
	a, err := usecase.NewAssistant(idx, ret, usecase.NewIngestor(emb, 0, 1, 0, nil), composer,
		usecase.AssistantOptions{Threshold: threshold})
	if err != nil {
		return err
	}
	assistant = a
	return nil
}

func main() {
	c := make(chan struct{})

	js.Global().Set("nutriguideLoad", js.FuncOf(loadDataset))
	js.Global().Set("nutriguideRoute", js.FuncOf(routeQuestion))
	js.Global().Set("nutriguideClear", js.FuncOf(clearKnowledge))
	js.Global().Set("nutriguideStats", js.FuncOf(getStats))

	<-c
}

func loadDataset(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: nutriguideLoad(datasetJSON)")
	}

	groups, err := dataset.Parse(strings.NewReader(args[0].String()))
	if err != nil {
		return makeError(err.Error())
	}

	rev, err := assistant.Replace(context.Background(), groups, nil)
	if err != nil {
		return makeError("load failed: " + err.Error())
	}

	return makeResult(map[string]interface{}{
		"success":   true,
		"revision":  rev.ID,
		"groups":    rev.Groups,
		"documents": rev.Documents,
	})
}

func routeQuestion(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: nutriguideRoute(question)")
	}
	question := args[0].String()

	prompt, d, err := assistant.Prompt(context.Background(), question)
	if err != nil {
		return makeError("route failed: " + err.Error())
	}

	out := map[string]interface{}{
		"question":    question,
		"source_used": d.Sufficient,
		"prompt":      prompt,
	}
	if d.Sufficient {
		out["match"] = map[string]interface{}{
			"id":       d.Best.Document.ID,
			"question": d.Best.Document.Question,
			"answer":   d.Best.Document.Answer,
			"score":    d.Best.Score,
		}
	}
	return makeResult(out)
}

func clearKnowledge(this js.Value, args []js.Value) interface{} {
	threshold := defaultThreshold
	if len(args) > 0 && args[0].Type() == js.TypeNumber {
		threshold = args[0].Float()
	}
	if err := reset(threshold); err != nil {
		return makeError(err.Error())
	}
	return makeResult(map[string]interface{}{
		"success":   true,
		"threshold": threshold,
	})
}

func getStats(this js.Value, args []js.Value) interface{} {
	stats := assistant.Stats()
	return makeResult(map[string]interface{}{
		"revision":  stats.Revision.ID,
		"documents": stats.Documents,
		"groups":    stats.Revision.Groups,
		"dimension": stats.Dimension,
		"threshold": stats.Threshold,
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
