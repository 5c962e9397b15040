// Package vtf decodes Valve Texture Format containers (versions 7.0 through
// 7.5) into per-frame RGBA pixel buffers.
//
// Only the largest mipmap, first face, and first depth slice of each animation
// frame are extracted; that is all the video renderer needs. Every malformed
// header, unsupported pixel format, or truncated payload is reported as
// services.ErrCorruptContainer so callers can tell a broken texture apart from
// an I/O problem.
package vtf
