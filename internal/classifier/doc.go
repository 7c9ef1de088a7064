// Package classifier serves a frozen BiLSTM text classifier and a semantic
// index built from its embeddings.
//
// The artifact directory holds portable formats rather than Python pickles:
//
//	config.json             architecture (embedding_dim, hidden_dim, num_layers, max_len, bidirectional, ...)
//	vocab.json              token -> index, the dict saved next to the model
//	label_encoder.json      {"classes": [...]}, i.e. LabelEncoder.classes_.tolist()
//	w2v.txt                 word2vec text format, KeyedVectors.save_word2vec_format(path, binary=False)
//	best_model.safetensors  state dict, safetensors.torch.save_file(model.state_dict(), path)
//	semantic_index.gob      optional, written by the service itself
//
// Converting a training run takes one short script on the training side:
// load the .pt state dict with torch.load, cast every tensor to float32 and
// save it with safetensors under its original names (embedding.weight,
// lstm.weight_ih_l0, ..., fc.weight, fc.bias); dump the pickled vocab and
// label encoder to JSON; export the gensim .kv vectors in text form. A
// missing file or a tensor whose shape disagrees with config.json fails Load
// with domain.ErrClassifierColdStart.
package classifier
