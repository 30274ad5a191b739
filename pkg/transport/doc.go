// Package transport carries input windows over websocket connections.
//
// The client keeps a Sender. Each simulation step it calls Send, which
// shifts the new input into its window and writes the whole window as
// one FrameInput:
//
//	s, err := transport.Dial[command.Command](ctx, "ws://host:7777/input", 8, nil)
//	go s.ReadAcks(ctx)
//	id, err := s.Send(ctx, cmd)
//
// The server mounts a Handler, which runs one Receiver per connection.
// The Receiver decodes each window, hands inputs it has not seen to
// OnInput in id order and answers with a FrameAck carrying the newest
// consumed id. The Sender puts that id in the watermark of later
// packets.
//
//	h := transport.NewHandler[command.Command](transport.HandlerConfig[command.Command]{
//	    WindowSize: 8,
//	    OnInput:    func(conn string, id netinput.InputID, c *command.Command) { ... },
//	})
//	http.ListenAndServe(":7777", transport.NewRouter(h, transport.RouterConfig{MetricsPath: "/metrics"}))
package transport
