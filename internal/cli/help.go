package cli

const rootLong = `qfilter turns URL query strings into MongoDB-style filter documents and runs
them against a small JSON document store (SQLite or Postgres).

QUERY STRINGS
  Every parameter is one clause. A "__" suffix picks the comparison:
    __gt __gte __lt __lte __ne __in __nin __all __exists __regex
  Values are typed: numbers, true/false, null, dates (2024-05-01), JSON arrays ["a","b"].
  The reserved __binding__ parameter composes clauses explicitly:
    '+' AND, '|' OR, parentheses group.

EXAMPLE
  qfilter build 'price__lte=7.8&is_verified=false&has_evolved=true&__binding__=(price__lte|is_verified)+has_evolved'
  {"$and":[{"$or":[{"price":{"$lte":7.8}},{"is_verified":false}]},{"has_evolved":true}]}

CONFIGURATION
  qfilter.yaml in . or ~/.config/qfilter, QFILTER_* environment variables
  (QFILTER_STORE_BACKEND, QFILTER_LOG_LEVEL, ...) and flags, in increasing
  priority.`
