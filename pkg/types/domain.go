package types

// Model represents a local model file discovered on disk. Each model becomes a
// resource slot managed by the scheduler.
type Model struct {
	// Stable identifier for the model (file name).
	// example: qwen2.5-vl-7b-q4_k_m.gguf
	ID string `json:"id" example:"qwen2.5-vl-7b-q4_k_m.gguf"`
	// Human-friendly name.
	// example: qwen2.5-vl-7b
	Name string `json:"name" example:"qwen2.5-vl-7b"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/qwen2.5-vl-7b-q4_k_m.gguf
	Path string `json:"path" example:"/home/user/models/qwen2.5-vl-7b-q4_k_m.gguf"`
	// Quantization level parsed from the file name, if any.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
	// Estimated device memory required when resident, in MB.
	// example: 4800
	SizeMB int `json:"size_mb" example:"4800"`
}
