// Package app wires portal's components together for one CLI invocation.
//
// The bootstrap sequence is:
//
//  1. Load the configuration (or take the one supplied by the caller)
//  2. Open the durable store selected by storage.backend
//  3. Create the session manager on top of the store
//  4. Create the OAuth client delegate
//  5. Create the authentication service and register the switch interceptor
//
// Application.Start then loads the persisted metadata and resumes the
// current session. Application.Close releases everything in reverse order
// and waits for background persistence to finish.
//
// Example:
//
//	application, err := app.NewApplication(&app.Config{ConfigPath: dir})
//	if err != nil {
//	    return err
//	}
//	defer application.Close()
//	ev, err := application.Start(ctx)
package app
