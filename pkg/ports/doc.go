/*
Package ports defines the driven ports (interfaces) around the contract guard.

These interfaces decouple the checking core from the places contracts come
from and the places violations go to, so the same service runs on a file,
a directory of documents, memory or Redis.

# Key Interfaces

  - Source: Loads the declared contracts (e.g., from a manifest file or a Loam directory).
  - Watchable: Signals that a Source changed and should be loaded again.
  - Journal: Records violations so they can be inspected after the fact.
*/
package ports
