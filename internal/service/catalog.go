package service

// Model describes a generation model offered to users. KieModelCreate and
// KieModelEdit are the provider model ids used without and with reference
// images.
type Model struct {
	ID                   string  `json:"id"`
	Title                string  `json:"title"`
	Description          string  `json:"description"`
	CostTokens           float64 `json:"cost_tokens"`
	SupportsResolution   bool    `json:"supports_resolution"`
	SupportsOutputFormat bool    `json:"supports_output_format"`
	DefaultOutputFormat  string  `json:"default_output_format,omitempty"`

	KieModelCreate string `json:"-"`
	KieModelEdit   string `json:"-"`
}

// KieModel resolves the provider model id for a request. Models without a
// dedicated edit variant use the same id either way; the payload builder
// handles the rest.
func (m Model) KieModel(hasReferences bool) string {
	if hasReferences && m.KieModelEdit != "" {
		return m.KieModelEdit
	}
	return m.KieModelCreate
}

// GPT4o reports whether the model goes through the dedicated gpt4o-image
// endpoints.
func (m Model) GPT4o() bool {
	return m.KieModelCreate == gpt4oKieModel
}

const gpt4oKieModel = "gpt4o-image"

var modelCatalog = []Model{
	{
		ID:                   "nanobanana",
		Title:                "NanoBanana",
		Description:          "Fast model for creating and editing images",
		CostTokens:           1,
		SupportsOutputFormat: true,
		KieModelCreate:       "google/nano-banana",
		KieModelEdit:         "google/nano-banana-edit",
	},
	{
		ID:                   "nanobanana_pro",
		Title:                "NanoBanana PRO",
		Description:          "Higher quality model with better prompt understanding",
		CostTokens:           2,
		SupportsResolution:   true,
		SupportsOutputFormat: true,
		DefaultOutputFormat:  "png",
		KieModelCreate:       "nano-banana-pro",
		KieModelEdit:         "nano-banana-pro",
	},
	{
		ID:             "seedream4",
		Title:          "Seedream 4.0",
		Description:    "High quality image generation",
		CostTokens:     1,
		KieModelCreate: "bytedance/seedream-v4-text-to-image",
		KieModelEdit:   "bytedance/seedream-v4-edit",
	},
	{
		ID:             "seedream4.5",
		Title:          "Seedream 4.5",
		Description:    "Latest Seedream 4.5 model",
		CostTokens:     1.5,
		KieModelCreate: "seedream/4.5-text-to-image",
		KieModelEdit:   "seedream/4.5-edit",
	},
	{
		ID:             "gpt-4o",
		Title:          "GPT-4o",
		Description:    "OpenAI image generation model",
		CostTokens:     2,
		KieModelCreate: gpt4oKieModel,
		KieModelEdit:   gpt4oKieModel,
	},
	{
		ID:                   "flux2",
		Title:                "Flux 2",
		Description:          "Powerful Flux 2 model with Pro and Flex modes",
		CostTokens:           1.5,
		SupportsOutputFormat: true,
		KieModelCreate:       "flux2/pro-text-to-image",
		KieModelEdit:         "flux2/pro-image-to-image",
	},
}

// Models returns the full model catalog in display order.
func Models() []Model {
	out := make([]Model, len(modelCatalog))
	copy(out, modelCatalog)
	return out
}

// LookupModel finds a catalog model by its public id.
func LookupModel(id string) (Model, bool) {
	for _, m := range modelCatalog {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}
