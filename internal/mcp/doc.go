// Package mcp implements the Model Context Protocol (MCP) server for StudyRAG.
//
// The MCP server exposes the retrieval engine to AI assistants over stdio:
//   - index_content: Embed and index study content items
//   - search_content: Semantic search over indexed content
//   - update_content: Modify stored items, re-embedding on text changes
//   - delete_content: Remove items by id
//   - list_content: List stored items, optionally scoped to an owner
//   - embed_pending: Embed stored items that do not yet carry a vector
//   - prioritize_sources: Merge multi-origin candidates into one ranked list
//   - get_status: Index statistics and health
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport. The server reads
// requests from stdin and writes responses to stdout, so all logging goes
// to stderr.
//
// # Tool: index_content
//
//	Request:
//	{
//	  "name": "index_content",
//	  "arguments": {
//	    "items": [
//	      {
//	        "title": "Derivative rules",
//	        "body": "The power rule states that ...",
//	        "topic": "calculus",
//	        "kind": "explanation"
//	      }
//	    ]
//	  }
//	}
//
//	Response:
//	{
//	  "indexed": 1,
//	  "failed": 0,
//	  "duration_ms": 84
//	}
//
// Items that fail to embed are reported individually; the remaining items
// are still indexed.
//
// # Tool: search_content
//
//	Request:
//	{
//	  "name": "search_content",
//	  "arguments": {
//	    "query": "how do I differentiate x^n",
//	    "limit": 5,
//	    "filters": {"topic": "calculus"}
//	  }
//	}
//
// Results are ranked by cosine similarity against the query embedding and
// filtered by the engine's minimum similarity threshold.
//
// # Tool: prioritize_sources
//
// Accepts candidate lists from four origin tiers (user content, curated
// references, knowledge-base entries, generic results) and returns a single
// deduplicated ranking where tier always dominates score.
package mcp
