// Package navigation decides when a surface should navigate in response to session changes.
//
// A [Coordinator] belongs to one surface instance. It starts in [Initializing], where session deliveries are logged and
// discarded while the surface runs its own synchronous check ([Coordinator.CheckInitialState]). Once the surface
// reports [Coordinator.OnSurfaceInitialized] the coordinator is [Settled] and deliveries become authoritative.
//
// Both the startup check and the delivery path go through one guarded primitive, so a surface navigates at most once
// per instance no matter which path fires first or how often the session state is re-delivered.
//
// Two coordinators cover the app's surfaces:
//
//   - [NewSignOutCoordinator] on the main surface navigates to the sign-in surface when the session ends.
//   - [NewSignInCoordinator] on the sign-in surface navigates to the main surface once the user is signed in.
package navigation
