// Package domain provides the record types, state enumerations and error
// taxonomy shared by every placement package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import domain; domain imports nothing internal.
//
// Key design constraints:
//   - Money is integer cents (Cents), never floats
//   - Optional timestamps are pointers, nil meaning "never happened"
//   - Business codes are derived here (RequestCode, CandidateCode) so every
//     caller formats them identically
//   - All JSON tags use snake_case; db tags match store column names
package domain
