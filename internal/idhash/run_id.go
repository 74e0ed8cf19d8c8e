package idhash

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"bot-sim-lab/internal/domain"
)

// runNamespace scopes run IDs so they never collide with other UUIDv5 users.
var runNamespace = uuid.MustParse("6f1c1f9e-4d0a-5b7e-9a53-2c8f0e3b7d41")

// ComputeRunID computes a deterministic run_id (UUIDv5).
// Formula: UUIDv5(ns, bot_type|symbol|interval|start|end|capital|params_json|signal_ts,...)
// Identical inputs map to the same run, so re-running a backtest is idempotent.
func ComputeRunID(
	botType domain.BotType,
	symbol string,
	interval string,
	startTime int64,
	endTime int64,
	initialCapital float64,
	paramsJSON string,
	signals []int64,
) string {
	ts := make([]string, len(signals))
	for i, s := range signals {
		ts[i] = strconv.FormatInt(s, 10)
	}

	data := fmt.Sprintf("%s|%s|%s|%d|%d|%s|%s|%s",
		string(botType),
		symbol,
		interval,
		startTime,
		endTime,
		strconv.FormatFloat(initialCapital, 'g', -1, 64),
		paramsJSON,
		strings.Join(ts, ","),
	)

	return uuid.NewSHA1(runNamespace, []byte(data)).String()
}
