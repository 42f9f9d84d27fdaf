package managed

import "strings"

func (g *generator) prelude() {
	g.w.Blank()
	for _, l := range strings.Split(strings.Trim(prelude, "\n"), "\n") {
		if l == "" {
			g.w.Line("")
			continue
		}
		g.w.Line("%s", l)
	}
}

// prelude holds the fixed representations shared with the native side.
// Field order and widths follow the container contracts.
const prelude = `
pub mod rt {
    use core::ffi::c_void;
    use core::mem::{ManuallyDrop, MaybeUninit};
    use core::pin::Pin;
    use core::sync::atomic::{AtomicU64, Ordering};

    pub type DropFn = unsafe extern "C" fn(*mut c_void);

    #[repr(C)]
    pub struct Vector<T> {
        ptr: *mut T,
        cap: usize,
        len: usize,
    }

    impl<T> Vector<T> {
        pub const fn null() -> Self {
            Vector { ptr: core::ptr::null_mut(), cap: 0, len: 0 }
        }

        pub fn new() -> Self {
            Vector::from(Vec::new())
        }

        /// Moves len elements starting at ptr into a new vector.
        pub unsafe fn from_raw_parts(ptr: *const T, len: usize) -> Self {
            let mut v = Vec::with_capacity(len);
            if len > 0 {
                core::ptr::copy_nonoverlapping(ptr, v.as_mut_ptr(), len);
                v.set_len(len);
            }
            Vector::from(v)
        }

        pub fn push(&mut self, value: T) {
            let mut v = self.take();
            v.push(value);
            *self = Vector::from(v);
        }

        pub fn into_vec(self) -> Vec<T> {
            let mut this = ManuallyDrop::new(self);
            this.take()
        }

        fn take(&mut self) -> Vec<T> {
            if self.ptr.is_null() {
                return Vec::new();
            }
            let v = unsafe { Vec::from_raw_parts(self.ptr, self.len, self.cap) };
            self.ptr = core::ptr::null_mut();
            self.cap = 0;
            self.len = 0;
            v
        }
    }

    impl<T> From<Vec<T>> for Vector<T> {
        fn from(v: Vec<T>) -> Self {
            let mut v = ManuallyDrop::new(v);
            Vector { ptr: v.as_mut_ptr(), cap: v.capacity(), len: v.len() }
        }
    }

    impl<T> Default for Vector<T> {
        fn default() -> Self {
            Vector::new()
        }
    }

    impl<T> core::ops::Deref for Vector<T> {
        type Target = [T];

        fn deref(&self) -> &[T] {
            if self.ptr.is_null() {
                return &[];
            }
            unsafe { core::slice::from_raw_parts(self.ptr, self.len) }
        }
    }

    impl<T> Drop for Vector<T> {
        fn drop(&mut self) {
            drop(self.take());
        }
    }

    #[repr(transparent)]
    pub struct Text(Vector<u8>);

    impl Text {
        pub const fn null() -> Self {
            Text(Vector::null())
        }

        pub fn new() -> Self {
            Text(Vector::new())
        }

        pub unsafe fn from_raw_parts(ptr: *const u8, len: usize) -> Self {
            Text(Vector::from_raw_parts(ptr, len))
        }

        pub fn push(&mut self, byte: u8) {
            self.0.push(byte);
        }

        pub fn as_bytes(&self) -> &[u8] {
            &self.0
        }

        pub fn to_str(&self) -> Result<&str, core::str::Utf8Error> {
            core::str::from_utf8(&self.0)
        }

        pub fn to_string_lossy(&self) -> String {
            String::from_utf8_lossy(&self.0).into_owned()
        }
    }

    impl From<String> for Text {
        fn from(s: String) -> Self {
            Text(Vector::from(s.into_bytes()))
        }
    }

    impl From<&str> for Text {
        fn from(s: &str) -> Self {
            Text::from(s.to_owned())
        }
    }

    impl core::fmt::Display for Text {
        fn fmt(&self, f: &mut core::fmt::Formatter<'_>) -> core::fmt::Result {
            f.write_str(&String::from_utf8_lossy(&self.0))
        }
    }

    impl core::fmt::Debug for Text {
        fn fmt(&self, f: &mut core::fmt::Formatter<'_>) -> core::fmt::Result {
            core::fmt::Debug::fmt(&String::from_utf8_lossy(&self.0), f)
        }
    }

    #[repr(C)]
    pub struct Optional<T> {
        present: u8,
        payload: MaybeUninit<T>,
    }

    impl<T> Optional<T> {
        pub const fn none() -> Self {
            Optional { present: 0, payload: MaybeUninit::uninit() }
        }

        pub fn some(value: T) -> Self {
            Optional { present: 1, payload: MaybeUninit::new(value) }
        }

        pub fn is_some(&self) -> bool {
            self.present != 0
        }

        pub fn as_ref(&self) -> Option<&T> {
            if self.present == 0 {
                return None;
            }
            Some(unsafe { self.payload.assume_init_ref() })
        }

        pub fn into_option(self) -> Option<T> {
            let mut this = ManuallyDrop::new(self);
            if this.present == 0 {
                return None;
            }
            this.present = 0;
            Some(unsafe { this.payload.assume_init_read() })
        }
    }

    impl<T> From<Option<T>> for Optional<T> {
        fn from(v: Option<T>) -> Self {
            match v {
                Some(v) => Optional::some(v),
                None => Optional::none(),
            }
        }
    }

    impl<T> Drop for Optional<T> {
        fn drop(&mut self) {
            if self.present != 0 {
                self.present = 0;
                unsafe { self.payload.assume_init_drop() }
            }
        }
    }

    /// Ties a type to the deleter that frees objects of it.
    pub unsafe trait UniqueTarget {
        const DROP: DropFn;
    }

    #[repr(C)]
    pub struct Unique<T> {
        ptr: *mut T,
        drop: Option<DropFn>,
    }

    pub unsafe extern "C" fn drop_box<T>(ptr: *mut c_void) {
        drop(Box::from_raw(ptr as *mut T));
    }

    impl<T> Unique<T> {
        pub const fn null() -> Self {
            Unique { ptr: core::ptr::null_mut(), drop: None }
        }

        pub fn new(value: T) -> Self {
            Unique { ptr: Box::into_raw(Box::new(value)), drop: Some(drop_box::<T>) }
        }

        pub fn adopt(ptr: *mut T) -> Self
        where
            T: UniqueTarget,
        {
            Unique { ptr, drop: Some(T::DROP) }
        }

        pub fn as_ptr(&self) -> *mut T {
            self.ptr
        }

        pub fn is_null(&self) -> bool {
            self.ptr.is_null()
        }

        pub fn as_ref(&self) -> Option<&T> {
            unsafe { self.ptr.as_ref() }
        }

        pub fn pin_mut(&mut self) -> Pin<&mut T> {
            assert!(!self.ptr.is_null(), "pin_mut on a null Unique");
            unsafe { Pin::new_unchecked(&mut *self.ptr) }
        }

        pub fn release(&mut self) -> *mut T {
            core::mem::replace(&mut self.ptr, core::ptr::null_mut())
        }
    }

    impl<T> core::ops::Deref for Unique<T> {
        type Target = T;

        fn deref(&self) -> &T {
            self.as_ref().expect("deref of a null Unique")
        }
    }

    impl<T> Drop for Unique<T> {
        fn drop(&mut self) {
            let ptr = self.release();
            if let (false, Some(drop)) = (ptr.is_null(), self.drop) {
                unsafe { drop(ptr as *mut c_void) }
            }
        }
    }

    #[repr(C)]
    pub struct ControlBlock {
        pub count: AtomicU64,
        pub drop: DropFn,
        pub ptr: *mut c_void,
    }

    #[repr(C)]
    pub struct Shared<T> {
        ptr: *mut T,
        ctrl: *mut ControlBlock,
    }

    pub unsafe extern "C" fn release_box<T>(ctrl: *mut c_void) {
        let ctrl = Box::from_raw(ctrl as *mut ControlBlock);
        drop(Box::from_raw(ctrl.ptr as *mut T));
    }

    impl<T> Shared<T> {
        pub const fn null() -> Self {
            Shared { ptr: core::ptr::null_mut(), ctrl: core::ptr::null_mut() }
        }

        pub fn new(value: T) -> Self {
            unsafe { Shared::from_raw(Box::into_raw(Box::new(value)), release_box::<T>) }
        }

        /// Shares ptr with a fresh control block. release frees both when
        /// the last handle drops.
        pub unsafe fn from_raw(ptr: *mut T, release: DropFn) -> Self {
            let ctrl = Box::new(ControlBlock {
                count: AtomicU64::new(1),
                drop: release,
                ptr: ptr as *mut c_void,
            });
            Shared { ptr, ctrl: Box::into_raw(ctrl) }
        }

        pub fn as_ptr(&self) -> *mut T {
            self.ptr
        }

        pub fn use_count(&self) -> u64 {
            if self.ctrl.is_null() {
                return 0;
            }
            unsafe { (&(*self.ctrl).count).load(Ordering::Acquire) }
        }
    }

    impl<T> Clone for Shared<T> {
        fn clone(&self) -> Self {
            if !self.ctrl.is_null() {
                unsafe { (&(*self.ctrl).count).fetch_add(1, Ordering::Relaxed) };
            }
            Shared { ptr: self.ptr, ctrl: self.ctrl }
        }
    }

    impl<T> core::ops::Deref for Shared<T> {
        type Target = T;

        fn deref(&self) -> &T {
            unsafe { self.ptr.as_ref() }.expect("deref of a null Shared")
        }
    }

    impl<T> Drop for Shared<T> {
        fn drop(&mut self) {
            let ctrl = core::mem::replace(&mut self.ctrl, core::ptr::null_mut());
            self.ptr = core::ptr::null_mut();
            if ctrl.is_null() {
                return;
            }
            unsafe {
                if (&(*ctrl).count).fetch_sub(1, Ordering::AcqRel) == 1 {
                    ((*ctrl).drop)(ctrl as *mut c_void);
                }
            }
        }
    }

    #[repr(C)]
    pub struct Outcome {
        tag: u8,
        msg: Text,
    }

    impl Outcome {
        pub fn ok() -> Self {
            Outcome { tag: 0, msg: Text::null() }
        }

        pub fn err(msg: String) -> Self {
            Outcome { tag: 1, msg: Text::from(msg) }
        }

        pub fn into_result(self) -> Result<(), Error> {
            if self.tag == 0 {
                return Ok(());
            }
            Err(Error { msg: self.msg.to_string_lossy() })
        }
    }

    /// A failure reported by the native side, carrying its message text.
    #[derive(Clone, Debug, PartialEq, Eq)]
    pub struct Error {
        msg: String,
    }

    impl Error {
        pub fn what(&self) -> &str {
            &self.msg
        }
    }

    impl core::fmt::Display for Error {
        fn fmt(&self, f: &mut core::fmt::Formatter<'_>) -> core::fmt::Result {
            f.write_str(&self.msg)
        }
    }

    impl std::error::Error for Error {}

    /// Runs f, aborting the process if it panics. Unwinding must never
    /// cross into native frames.
    pub fn abort_on_panic<R>(f: impl FnOnce() -> R) -> R {
        match std::panic::catch_unwind(std::panic::AssertUnwindSafe(f)) {
            Ok(r) => r,
            Err(_) => std::process::abort(),
        }
    }
}
`
