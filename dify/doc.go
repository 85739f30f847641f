// Package dify is a client for the Dify application API.
//
// Create a client with the app's API key and call one method per API
// capability:
//
//	client, err := dify.New(os.Getenv("DIFY_API_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.ChatMessages(ctx, &dify.ChatRequest{
//	    Query: "What can you do?",
//	    User:  "user-123",
//	})
//
// # Streaming
//
// The Stream* methods return a [Stream] that decodes server-sent events into
// typed [Event] values. Consume it with Next, with a range loop over All, or
// drain it with Collect. Always close a stream you stop reading early:
//
//	stream, err := client.StreamChatMessages(ctx, req)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for ev, err := range stream.All() {
//	    if err != nil {
//	        return err
//	    }
//	    if msg, ok := ev.(*dify.MessageEvent); ok {
//	        fmt.Print(msg.Answer)
//	    }
//	}
//
// # Errors
//
// Every error is a *core.ServiceError. Invalid requests are rejected before
// any network call with kind BadRequest and code "invalid_param". The client
// never retries; use errors.Is(err, core.ErrRateLimited) and similar checks
// to build a retry policy.
package dify
