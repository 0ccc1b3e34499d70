package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Layers
		{
			Name:        "session_load_image",
			Description: "Load an anatomical image as a named layer. Several paths are treated as z-planes and max-projected. The stack must have a channel axis.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Layer name, e.g. hippocampus or thalamus",
					},
					"paths": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Image files (TIFF or PNG)",
					},
					"max_projected": map[string]interface{}{
						"type":        "boolean",
						"description": "Inputs are already max-projected; exactly one path is allowed",
						"default":     false,
					},
				},
				"required": []string{"name", "paths"},
			},
		},
		{
			Name:        "session_state",
			Description: "Return every image, ROI and points layer with its visibility, plus the current drawing prompt.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// ROIs
		{
			Name:        "session_add_roi",
			Description: "Add a completed polygon to an image's ROI layer. Unnamed polygons on the prompted image are labelled with the prompted region. Returns the next prompt.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image": map[string]interface{}{
						"type":        "string",
						"description": "Image layer the polygon was drawn on",
					},
					"vertices": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type":     "array",
							"items":    map[string]interface{}{"type": "number"},
							"minItems": 2,
							"maxItems": 2,
						},
						"description": "Polygon vertices as [row, col] pairs",
					},
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Optional explicit region name",
					},
				},
				"required": []string{"image", "vertices"},
			},
		},
		{
			Name:        "session_load_rois",
			Description: "Add every polygon from a YAML ROI file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Path to the ROI file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "session_save_rois",
			Description: "Write every drawn polygon to a YAML ROI file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Path to write",
					},
				},
				"required": []string{"path"},
			},
		},

		// Analysis
		{
			Name:        "session_analyze",
			Description: "Count spots in every drawn region of every loaded image, write results.csv and any enabled side outputs, and add one points layer per region and marker channel.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"output": map[string]interface{}{
						"type":        "string",
						"description": "Results CSV path. Default from configuration (results.csv)",
					},
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory for all outputs",
					},
					"pixel_spacing": map[string]interface{}{
						"type":        "number",
						"description": "Microns per pixel. Default 0.4475",
					},
					"threshold": map[string]interface{}{
						"type":        "number",
						"description": "Absolute intensity a spot must exceed. Default 100",
					},
					"min_distance": map[string]interface{}{
						"type":        "integer",
						"description": "Minimum spot separation in pixels. Default 5",
					},
					"channels": map[string]interface{}{
						"type":        "string",
						"description": "Channel map, e.g. DAPI=0,GOB=1,GOA=2",
					},
					"save_params": map[string]interface{}{
						"type":        "boolean",
						"description": "Write params.json",
					},
					"save_cutouts": map[string]interface{}{
						"type":        "boolean",
						"description": "Write per-region PNG cutouts",
					},
					"save_rois": map[string]interface{}{
						"type":        "boolean",
						"description": "Write per-region vertex arrays",
					},
					"cutout_scale": map[string]interface{}{
						"type":        "integer",
						"description": "Integer enlargement of cutouts",
					},
				},
			},
		},
		{
			Name:        "session_points",
			Description: "Return the peak overlays from the last analysis, optionally filtered by image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image": map[string]interface{}{
						"type":        "string",
						"description": "Only layers on this image",
					},
				},
			},
		},
		{
			Name:        "session_reset",
			Description: "Clear all polygons and peaks and restart the drawing prompts. Loaded images are kept.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
