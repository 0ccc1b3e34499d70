package server

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/ironsheep/rnascope-counter/internal/analysis"
	"github.com/ironsheep/rnascope-counter/internal/roi"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "session_add_roi").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Layers
	case "session_load_image":
		return s.handleLoadImage(args)
	case "session_state":
		return s.session.State(), nil

	// ROIs
	case "session_add_roi":
		return s.handleAddROI(args)
	case "session_load_rois":
		return s.handleLoadROIs(args)
	case "session_save_rois":
		return s.handleSaveROIs(args)

	// Analysis
	case "session_analyze":
		return s.handleAnalyze(args)
	case "session_points":
		return s.handlePoints(args)
	case "session_reset":
		s.session.Reset()
		return s.session.Prompt(), nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments; absent arguments leave v untouched.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Layer Handlers ===

type loadImageArgs struct {
	Name         string   `json:"name"`
	Paths        []string `json:"paths"`
	MaxProjected *bool    `json:"max_projected"`
}

func (s *Server) handleLoadImage(args json.RawMessage) (interface{}, error) {
	var a loadImageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	maxProjected := s.cfg.Input.MaxProjected
	if a.MaxProjected != nil {
		maxProjected = *a.MaxProjected
	}
	layer, err := s.session.LoadImage(a.Name, a.Paths, maxProjected)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"layer":  layer,
		"prompt": s.session.Prompt(),
	}, nil
}

// === ROI Handlers ===

type addROIArgs struct {
	Image    string       `json:"image"`
	Vertices [][2]float64 `json:"vertices"`
	Name     string       `json:"name"`
}

func (s *Server) handleAddROI(args json.RawMessage) (interface{}, error) {
	var a addROIArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.session.AddPolygon(a.Image, roi.Polygon{Name: a.Name, Vertices: a.Vertices})
}

type roiFileArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleLoadROIs(args json.RawMessage) (interface{}, error) {
	var a roiFileArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	f, err := roi.LoadFile(a.Path)
	if err != nil {
		return nil, err
	}
	if err := s.session.AddROIs(f); err != nil {
		return nil, err
	}
	return s.session.Prompt(), nil
}

func (s *Server) handleSaveROIs(args json.RawMessage) (interface{}, error) {
	var a roiFileArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	f := s.session.ROIs()
	if err := roi.SaveFile(f, a.Path); err != nil {
		return nil, err
	}
	n := 0
	for _, polys := range f.Images {
		n += len(polys)
	}
	return map[string]interface{}{
		"path":     a.Path,
		"polygons": n,
	}, nil
}

// === Analysis Handlers ===

type analyzeArgs struct {
	Output       string   `json:"output"`
	OutputDir    string   `json:"output_dir"`
	PixelSpacing *float64 `json:"pixel_spacing"`
	Threshold    *float64 `json:"threshold"`
	MinDistance  *int     `json:"min_distance"`
	Channels     string   `json:"channels"`
	SaveParams   *bool    `json:"save_params"`
	SaveCutouts  *bool    `json:"save_cutouts"`
	SaveROIs     *bool    `json:"save_rois"`
	CutoutScale  *int     `json:"cutout_scale"`
}

// AnalyzeResult is returned by session_analyze.
type AnalyzeResult struct {
	ResultsPath string          `json:"results_path"`
	Rows        []analysis.Row  `json:"rows"`
	Params      analysis.Params `json:"params"`
}

func (s *Server) handleAnalyze(args json.RawMessage) (interface{}, error) {
	var a analyzeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	params := analysis.ParamsFromConfig(s.cfg)
	if a.PixelSpacing != nil {
		params.PixelSpacing = *a.PixelSpacing
	}
	if a.Threshold != nil {
		params.Threshold = *a.Threshold
	}
	if a.MinDistance != nil {
		params.MinDistance = *a.MinDistance
	}
	if a.Channels != "" {
		chs, err := analysis.ParseChannels(a.Channels)
		if err != nil {
			return nil, err
		}
		params.Channels = chs
	}

	out := s.cfg.Output
	opts := analysis.Options{
		ResultsPath: s.cfg.ResultsPath(),
		OutputDir:   s.cfg.OutputDir(),
		SaveParams:  out.SaveParams,
		SaveCutouts: out.SaveCutouts,
		SaveROIs:    out.SaveROIs,
		CutoutScale: out.CutoutScale,
		Logger:      s.log,
	}
	if a.Output != "" {
		opts.ResultsPath = a.Output
		opts.OutputDir = filepath.Dir(a.Output)
	}
	if a.OutputDir != "" {
		opts.OutputDir = a.OutputDir
		opts.ResultsPath = filepath.Join(a.OutputDir, filepath.Base(opts.ResultsPath))
	}
	if a.SaveParams != nil {
		opts.SaveParams = *a.SaveParams
	}
	if a.SaveCutouts != nil {
		opts.SaveCutouts = *a.SaveCutouts
	}
	if a.SaveROIs != nil {
		opts.SaveROIs = *a.SaveROIs
	}
	if a.CutoutScale != nil {
		opts.CutoutScale = *a.CutoutScale
	}

	rows, err := s.session.Analyze(context.Background(), params, opts)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []analysis.Row{}
	}
	return &AnalyzeResult{ResultsPath: opts.ResultsPath, Rows: rows, Params: params}, nil
}

type pointsArgs struct {
	Image string `json:"image"`
}

func (s *Server) handlePoints(args json.RawMessage) (interface{}, error) {
	var a pointsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	layers := []analysis.PointsLayer{}
	for _, l := range s.session.Points() {
		if a.Image == "" || l.Image == a.Image {
			layers = append(layers, l)
		}
	}
	return layers, nil
}
