// Package memory provides the graph-based agent memory and the interfaces
// used to bridge it into vector search.
//
// Architecture:
//   - Graph: nodes (learning, newData, update, action, observation, decision)
//     linked by weighted relationships, evolved by learning cycles
//   - Memory: a node snapshot prepared for vector storage
//   - Store: vector storage backend (chromem-go for local use)
//   - Embedder: text-to-vector conversion (hash embedder for local use)
//
// Graph events (create, update, evolve) are delivered to subscribers, which is
// how the Neo4j connector, the vector bridge and the event stream follow a
// graph without the graph knowing about them.
package memory
