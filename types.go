package callsite

import "github.com/jward/callsite/internal/store"

// Public type aliases for internal store types used in the QueryBuilder API.
// These are Go type aliases (=), identical to the internal types at compile
// time. External consumers use these names; no conversion is needed.

type Store = store.Store
type File = store.File
type Definition = store.Definition
type CallSite = store.CallSite
type Caller = store.CallerInfo
type SymbolCount = store.SymbolCount
type DialectSummary = store.DialectSummary
