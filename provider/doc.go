// Package provider defines the generic provider pattern used across the
// module: a base Provider interface, typed factories, and a registry for
// runtime-selectable backends.
package provider
