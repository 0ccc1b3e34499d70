// Package server exposes a counting session over a line-delimited JSON-RPC 2.0
// protocol, so a viewer front-end can drive it.
//
// # Protocol
//
// The server communicates over stdio:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Layers:
//   - session_load_image: Load a stack as a named image layer
//   - session_state: All layers, their visibility, and the drawing prompt
//
// ROIs:
//   - session_add_roi: Add a completed polygon; returns the next prompt
//   - session_load_rois: Add polygons from a YAML ROI file
//   - session_save_rois: Write drawn polygons to a YAML ROI file
//
// Analysis:
//   - session_analyze: Count spots and write results.csv
//   - session_points: Peak overlays from the last analysis
//   - session_reset: Clear polygons and peaks
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with code
// -32000 and the Go error string as data. Logging goes to stderr.
//
// # Usage
//
//	sess := session.New(cfg, nil, logger)
//	srv := server.New(sess, cfg, logger)
//	if err := srv.Serve(os.Stdin, os.Stdout); err != nil {
//	    logger.Error("server error", "error", err)
//	}
package server
