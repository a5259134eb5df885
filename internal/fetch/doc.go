// Package fetch retrieves clip and audio bytes into local files.
//
// A Fetcher understands three kinds of locator: http(s) URLs, s3://bucket/key
// objects, and local paths (optionally file:// URLs). Every fetch writes to a
// ".part" sibling and renames it into place after the full body arrived, so a
// destination is either complete or absent. Empty bodies, non-2xx responses,
// and missing objects are errors tagged with services markers.
package fetch
