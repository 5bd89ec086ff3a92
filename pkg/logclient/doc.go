// Package logclient ships tagged log events to a collecting HTTP service.
//
// Each event carries a list of tags and arbitrary data. Events are either
// posted one per request or buffered into batches that are released when
// they reach a size, when an event carries a release tag such as "error",
// or when an interval has passed since the first buffered event.
//
// Log never blocks on the network and never returns delivery errors.
// Failed deliveries are retried with truncated exponential backoff and
// then reported to an optional FailureHandler:
//
//	client, err := logclient.New(logclient.Options{
//		BaseURL: "http://collector:8000",
//		Batch:   logclient.BatchOn(),
//	}, logclient.WithFailureHandler(func(info logclient.FailureInfo) {
//		slog.Error("log delivery failed", "status", info.StatusCode)
//	}))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	client.Log(logclient.Event{Tags: []string{"info"}, Data: "started"})
package logclient
