// Package result turns the transfer engine's flat status codes into a typed
// result model.
//
// A finished transfer yields exactly one of:
//
//   - an [Outcome]: an expected result that callers branch on, such as
//     [OK], [MalformedURL], [HostResolutionFailed] or [TimedOut];
//   - an [*Error]: an abnormal condition such as allocation failure, misuse,
//     a re-entrant call, or an engine defect.
//
// [Map] performs the translation and is total over [Code]:
//
//	out, err := result.Map(code, detail)
//	if err != nil {
//		// abnormal; errors.Is(err, result.ErrReentrant), ...
//	}
//	switch out {
//	case result.OK:
//	case result.TimedOut:
//	}
//
// When err is non-nil the Outcome is [None], so comparing against [OK]
// alone never hides an error.
package result
