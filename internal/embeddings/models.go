package embeddings

// fastEmbedModel is a local ONNX model known to fastembed-go. ID is the
// fastembed model constant.
type fastEmbedModel struct {
	ID        string
	Dimension int
}

// fastEmbedModels is keyed by Hugging Face name and by fastembed ID.
var fastEmbedModels = func() map[string]fastEmbedModel {
	byName := map[string]fastEmbedModel{
		"BAAI/bge-small-en-v1.5":                 {ID: "fast-bge-small-en-v1.5", Dimension: 384},
		"BAAI/bge-small-en":                      {ID: "fast-bge-small-en", Dimension: 384},
		"BAAI/bge-base-en-v1.5":                  {ID: "fast-bge-base-en-v1.5", Dimension: 768},
		"BAAI/bge-base-en":                       {ID: "fast-bge-base-en", Dimension: 768},
		"BAAI/bge-small-zh-v1.5":                 {ID: "fast-bge-small-zh-v1.5", Dimension: 512},
		"sentence-transformers/all-MiniLM-L6-v2": {ID: "fast-all-MiniLM-L6-v2", Dimension: 384},
	}
	all := make(map[string]fastEmbedModel, 2*len(byName))
	for name, m := range byName {
		all[name] = m
		all[m.ID] = m
	}
	return all
}()

// fastEmbedModelDimension returns the vector size of a known local model.
func fastEmbedModelDimension(model string) (int, bool) {
	m, ok := fastEmbedModels[model]
	return m.Dimension, ok
}
